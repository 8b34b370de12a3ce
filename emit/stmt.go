package emit

import (
	"fmt"

	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

func (kc *kernelCtx) emitStmt(s *ir.Stmt) error {
	switch k := s.Kind.(type) {
	case ir.Block:
		for _, child := range k.Stmts {
			if err := kc.emitStmt(child); err != nil {
				return err
			}
		}
		return nil

	case ir.Store:
		return kc.emitStore(k)

	case ir.LetStmt:
		val, err := kc.emitExpr(k.Value)
		if err != nil {
			return err
		}
		kc.scope.pushValues()
		kc.scope.bindValue(k.Name, valueBinding{id: val, typ: k.Value.Type})
		err = kc.emitStmt(k.Body)
		kc.scope.popValues()
		return err

	case ir.For:
		if k.ForType == ir.ForSerial {
			return kc.emitForSerial(k)
		}
		return kc.emitForGPU(k)

	case ir.IfThenElse:
		return kc.emitIf(k)

	case ir.Allocate:
		return kc.emitAllocate(k)

	case ir.Free:
		// The Name's visibility already ends at its Allocate's Body scope;
		// SPIR-V has no notion of releasing a Workgroup-storage variable,
		// so there is nothing left to emit.
		return nil

	case ir.Evaluate:
		_, err := kc.emitExpr(k.Value)
		return err

	case ir.AssertStmt:
		return kc.emitAssert(k)

	default:
		return fmt.Errorf("emit: unsupported statement %T", s.Kind)
	}
}

// emitForGPU realizes a GPUThread/GPUBlock loop as a direct value binding:
// no branch is emitted, since the built-in invocation id already ranges
// over the full dispatch grid.
func (kc *kernelCtx) emitForGPU(f ir.For) error {
	kind := spirv.BuiltInLocalInvocationID
	if f.ForType == ir.ForGPUBlock {
		kind = spirv.BuiltInWorkgroupID
	}
	dimVal := kc.loadGPUDim(kind, f.Dim)

	bound := dimVal
	if !isZeroConst(f.Min) {
		minVal, err := kc.emitExpr(f.Min)
		if err != nil {
			return err
		}
		i32 := kc.b().TypeID(ir.IntOf(32))
		bound = kc.b().Emit(spirv.OpIAdd, i32, minVal, dimVal)
	}

	kc.scope.pushValues()
	kc.scope.bindValue(f.Name, valueBinding{id: bound, typ: ir.IntOf(32)})
	err := kc.emitStmt(f.Body)
	kc.scope.popValues()
	return err
}

// emitForSerial lowers a serial loop to the five-block structured shape
// shape: entry -> header -> top (cond) -> body -> continue
// -> header, merging after top's false branch. The induction variable is a
// Function-storage local rather than a header-block OpPhi: both are valid
// SPIR-V, and a memory-backed counter keeps the block-building code
// symmetric with Allocate's own use of Store/Load.
func (kc *kernelCtx) emitForSerial(f ir.For) error {
	b := kc.b()
	ty := f.Min.Type
	typeID := b.TypeID(ty)
	ptrType := b.PointerTypeID(spirv.StorageClassFunction, typeID)
	indVar := b.DeclareLocal(ptrType, nil)

	minVal, err := kc.emitExpr(f.Min)
	if err != nil {
		return err
	}
	extentVal, err := kc.emitExpr(f.Extent)
	if err != nil {
		return err
	}
	limit := b.Emit(loopAddOpcode(ty), typeID, minVal, extentVal)
	b.EmitVoid(spirv.OpStore, indVar, minVal)

	headerLabel := b.AllocID(spirv.IDLabel)
	topLabel := b.AllocID(spirv.IDLabel)
	bodyLabel := b.AllocID(spirv.IDLabel)
	continueLabel := b.AllocID(spirv.IDLabel)
	mergeLabel := b.AllocID(spirv.IDLabel)

	b.Branch(headerLabel)

	b.OpenBlock(headerLabel)
	b.LoopMerge(mergeLabel, continueLabel, spirv.LoopControlNone)
	b.Branch(topLabel)

	b.OpenBlock(topLabel)
	cur := b.Emit(spirv.OpLoad, typeID, indVar)
	boolType := b.TypeID(ir.BoolType())
	cond := b.Emit(loopLessOpcode(ty), boolType, cur, limit)
	b.BranchConditional(cond, bodyLabel, mergeLabel)

	b.OpenBlock(bodyLabel)
	kc.scope.pushValues()
	kc.scope.bindValue(f.Name, valueBinding{id: cur, typ: ty})
	bodyErr := kc.emitStmt(f.Body)
	kc.scope.popValues()
	if bodyErr != nil {
		return bodyErr
	}
	b.Branch(continueLabel)

	b.OpenBlock(continueLabel)
	curAtContinue := b.Emit(spirv.OpLoad, typeID, indVar)
	one := oneConst(b, ty)
	next := b.Emit(loopAddOpcode(ty), typeID, curAtContinue, one)
	b.EmitVoid(spirv.OpStore, indVar, next)
	b.Branch(headerLabel)

	b.OpenBlock(mergeLabel)
	return nil
}

func isZeroConst(e *ir.Expr) bool {
	v, ok := ir.AsInt64(e)
	return ok && v == 0
}

func loopAddOpcode(t ir.Type) spirv.OpCode { return arithOpcode(ir.Add{}, t) }

func loopLessOpcode(t ir.Type) spirv.OpCode {
	switch {
	case t.IsFloat():
		return spirv.OpFOrdLessThan
	case t.IsInt():
		return spirv.OpSLessThan
	default:
		return spirv.OpULessThan
	}
}

func oneConst(b *spirv.Builder, t ir.Type) uint32 {
	switch {
	case t.IsFloat():
		if t.Bits == 64 {
			return b.ConstFloat64(1)
		}
		return b.ConstFloat32(1)
	case t.IsInt():
		return b.ConstInt(t, 1)
	default:
		return b.ConstUint(t, 1)
	}
}

// emitIf lowers a statement-level conditional to a selection-merge diamond.
// Unlike Select (the expression-level conditional, emitted with a Phi at
// its merge), this produces no value, so the merge block needs nothing
// joined at it.
func (kc *kernelCtx) emitIf(s ir.IfThenElse) error {
	b := kc.b()
	cond, err := kc.emitExpr(s.Cond)
	if err != nil {
		return err
	}

	mergeLabel := b.AllocID(spirv.IDLabel)
	thenLabel := b.AllocID(spirv.IDLabel)
	elseLabel := mergeLabel
	if s.Else != nil {
		elseLabel = b.AllocID(spirv.IDLabel)
	}

	b.SelectionMerge(mergeLabel, spirv.SelectionControlNone)
	b.BranchConditional(cond, thenLabel, elseLabel)

	b.OpenBlock(thenLabel)
	if err := kc.emitStmt(s.Then); err != nil {
		return err
	}
	b.Branch(mergeLabel)

	if s.Else != nil {
		b.OpenBlock(elseLabel)
		if err := kc.emitStmt(s.Else); err != nil {
			return err
		}
		b.Branch(mergeLabel)
	}

	b.OpenBlock(mergeLabel)
	return nil
}

// emitAllocate declares Name as a fixed-size Workgroup-storage array sized
// by the product of Extents, which must all be compile-time constants.
func (kc *kernelCtx) emitAllocate(a ir.Allocate) error {
	var n uint64 = 1
	for _, ext := range a.Extents {
		v, ok := ir.AsInt64(ext)
		if !ok {
			return fmt.Errorf("emit: Allocate %q: extent must be a compile-time constant", a.Name)
		}
		n *= uint64(v)
	}

	b := kc.b()
	arrType := b.ArrayTypeID(a.Type, uint32(n))
	ptrType := b.PointerTypeID(spirv.StorageClassWorkgroup, arrType)
	varID := b.AddVariable(ptrType, spirv.StorageClassWorkgroup, nil)
	kc.interfaceVars[varID] = true
	elemID := b.TypeID(a.Type)

	kc.scope.pushBuffers()
	kc.scope.bindBuffer(a.Name, bufferBinding{
		base: varID, elem: a.Type, elemID: elemID,
		storage: spirv.StorageClassWorkgroup, wrapped: false,
	})
	err := kc.emitStmt(a.Body)
	kc.scope.popBuffers()
	return err
}

// emitAssert lowers to a kill-on-failure diamond: a compute shader has no
// host-visible abort channel, so Message is informational only and carries
// no SPIR-V representation.
func (kc *kernelCtx) emitAssert(a ir.AssertStmt) error {
	b := kc.b()
	cond, err := kc.emitExpr(a.Condition)
	if err != nil {
		return err
	}
	boolType := b.TypeID(ir.BoolType())
	notCond := b.Emit(spirv.OpLogicalNot, boolType, cond)

	mergeLabel := b.AllocID(spirv.IDLabel)
	failLabel := b.AllocID(spirv.IDLabel)
	b.SelectionMerge(mergeLabel, spirv.SelectionControlNone)
	b.BranchConditional(notCond, failLabel, mergeLabel)

	b.OpenBlock(failLabel)
	b.Kill()

	b.OpenBlock(mergeLabel)
	return nil
}
