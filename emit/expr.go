package emit

import (
	"fmt"

	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

func (kc *kernelCtx) emitExpr(e *ir.Expr) (uint32, error) {
	switch k := e.Kind.(type) {
	case ir.ImmInt:
		return kc.splatConst(e.Type, kc.b().ConstInt(e.Type.WithLanes(1), k.Value)), nil
	case ir.ImmUint:
		return kc.splatConst(e.Type, kc.b().ConstUint(e.Type.WithLanes(1), k.Value)), nil
	case ir.ImmFloat:
		var scalar uint32
		if e.Type.Bits == 64 {
			scalar = kc.b().ConstFloat64(k.Value)
		} else {
			scalar = kc.b().ConstFloat32(float32(k.Value))
		}
		return kc.splatConst(e.Type, scalar), nil
	case ir.ImmBool:
		return kc.splatConst(e.Type, kc.b().ConstBool(k.Value)), nil
	case ir.ImmStr:
		return 0, fmt.Errorf("emit: string immediate has no SPIR-V value form")

	case ir.Var:
		if b, ok := kc.scope.lookupValue(k.Name); ok {
			return b.id, nil
		}
		return kc.emitGPUBuiltinVar(k.Name)

	case ir.Cast:
		return kc.emitCast(k.X, e.Type)
	case ir.Reinterpret:
		return kc.emitReinterpret(k.X, e.Type)

	case ir.Add, ir.Sub, ir.Mul, ir.Div, ir.Mod:
		return kc.emitArith(e)
	case ir.Min:
		return kc.glslMinMax(true, e.Type, []*ir.Expr{k.X, k.Y})
	case ir.Max:
		return kc.glslMinMax(false, e.Type, []*ir.Expr{k.X, k.Y})

	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
		return kc.emitCompare(e)

	case ir.And, ir.Or:
		return kc.emitLogic(e)
	case ir.Not:
		return kc.emitNot(k.X, e.Type)

	case ir.Select:
		return kc.emitSelect(k)

	case ir.Load:
		return kc.emitLoad(k, e.Type)
	case ir.Ramp:
		return kc.emitRampValue(k, e.Type)
	case ir.Broadcast:
		return kc.emitBroadcastValue(k, e.Type)
	case ir.Shuffle:
		return kc.emitShuffle(k, e.Type)

	case ir.Call:
		return kc.callExpr(k, e.Type)

	case ir.Let:
		val, err := kc.emitExpr(k.Value)
		if err != nil {
			return 0, err
		}
		kc.scope.pushValues()
		kc.scope.bindValue(k.Name, valueBinding{id: val, typ: k.Value.Type})
		res, err := kc.emitExpr(k.Body)
		kc.scope.popValues()
		return res, err

	default:
		return 0, fmt.Errorf("emit: unsupported expression %T", e.Kind)
	}
}

func (kc *kernelCtx) emitArith(e *ir.Expr) (uint32, error) {
	var x, y *ir.Expr
	switch k := e.Kind.(type) {
	case ir.Add:
		x, y = k.X, k.Y
	case ir.Sub:
		x, y = k.X, k.Y
	case ir.Mul:
		x, y = k.X, k.Y
	case ir.Div:
		x, y = k.X, k.Y
	case ir.Mod:
		x, y = k.X, k.Y
	}
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	yv, err := kc.emitExpr(y)
	if err != nil {
		return 0, err
	}
	opcode := arithOpcode(e.Kind, e.Type)
	typeID := kc.b().TypeID(e.Type)
	return kc.b().Emit(opcode, typeID, xv, yv), nil
}

func arithOpcode(kind ir.ExprKind, t ir.Type) spirv.OpCode {
	switch kind.(type) {
	case ir.Add:
		if t.IsFloat() {
			return spirv.OpFAdd
		}
		return spirv.OpIAdd
	case ir.Sub:
		if t.IsFloat() {
			return spirv.OpFSub
		}
		return spirv.OpISub
	case ir.Mul:
		if t.IsFloat() {
			return spirv.OpFMul
		}
		return spirv.OpIMul
	case ir.Div:
		switch {
		case t.IsFloat():
			return spirv.OpFDiv
		case t.IsInt():
			return spirv.OpSDiv
		default:
			return spirv.OpUDiv
		}
	case ir.Mod:
		switch {
		case t.IsFloat():
			return spirv.OpFMod
		case t.IsInt():
			return spirv.OpSMod
		default:
			return spirv.OpUMod
		}
	}
	panic("emit: arithOpcode: not an arithmetic kind")
}

func (kc *kernelCtx) emitCompare(e *ir.Expr) (uint32, error) {
	var x, y *ir.Expr
	switch k := e.Kind.(type) {
	case ir.EQ:
		x, y = k.X, k.Y
	case ir.NE:
		x, y = k.X, k.Y
	case ir.LT:
		x, y = k.X, k.Y
	case ir.LE:
		x, y = k.X, k.Y
	case ir.GT:
		x, y = k.X, k.Y
	case ir.GE:
		x, y = k.X, k.Y
	}
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	yv, err := kc.emitExpr(y)
	if err != nil {
		return 0, err
	}
	opcode := compareOpcode(e.Kind, x.Type)
	typeID := kc.b().TypeID(e.Type)
	return kc.b().Emit(opcode, typeID, xv, yv), nil
}

func compareOpcode(kind ir.ExprKind, operandType ir.Type) spirv.OpCode {
	isFloat := operandType.IsFloat()
	isSigned := operandType.IsInt()
	switch kind.(type) {
	case ir.EQ:
		if isFloat {
			return spirv.OpFOrdEqual
		}
		return spirv.OpIEqual
	case ir.NE:
		if isFloat {
			return spirv.OpFOrdNotEqual
		}
		return spirv.OpINotEqual
	case ir.LT:
		switch {
		case isFloat:
			return spirv.OpFOrdLessThan
		case isSigned:
			return spirv.OpSLessThan
		default:
			return spirv.OpULessThan
		}
	case ir.LE:
		switch {
		case isFloat:
			return spirv.OpFOrdLessThanEqual
		case isSigned:
			return spirv.OpSLessThanEqual
		default:
			return spirv.OpULessThanEqual
		}
	case ir.GT:
		switch {
		case isFloat:
			return spirv.OpFOrdGreaterThan
		case isSigned:
			return spirv.OpSGreaterThan
		default:
			return spirv.OpUGreaterThan
		}
	case ir.GE:
		switch {
		case isFloat:
			return spirv.OpFOrdGreaterThanEqual
		case isSigned:
			return spirv.OpSGreaterThanEqual
		default:
			return spirv.OpUGreaterThanEqual
		}
	}
	panic("emit: compareOpcode: not a comparison kind")
}

func (kc *kernelCtx) emitLogic(e *ir.Expr) (uint32, error) {
	var x, y *ir.Expr
	isAnd := false
	switch k := e.Kind.(type) {
	case ir.And:
		x, y, isAnd = k.X, k.Y, true
	case ir.Or:
		x, y = k.X, k.Y
	}
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	yv, err := kc.emitExpr(y)
	if err != nil {
		return 0, err
	}
	var opcode spirv.OpCode
	switch {
	case e.Type.IsBool() && isAnd:
		opcode = spirv.OpLogicalAnd
	case e.Type.IsBool():
		opcode = spirv.OpLogicalOr
	case isAnd:
		opcode = spirv.OpBitwiseAnd
	default:
		opcode = spirv.OpBitwiseOr
	}
	typeID := kc.b().TypeID(e.Type)
	return kc.b().Emit(opcode, typeID, xv, yv), nil
}

func (kc *kernelCtx) emitNot(x *ir.Expr, t ir.Type) (uint32, error) {
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	opcode := spirv.OpNot
	if t.IsBool() {
		opcode = spirv.OpLogicalNot
	}
	typeID := kc.b().TypeID(t)
	return kc.b().Emit(opcode, typeID, xv), nil
}

// emitSelect lowers the expression-level conditional to the four-block
// if/then/else/merge graph with a two-input OpPhi at the merge, rather than
// OpSelect: both arms can be arbitrary expressions (a Load guarded by the
// very condition that makes it safe, for one), so only one arm may
// actually execute, matching the source language's short-circuiting
// if-expression semantics.
func (kc *kernelCtx) emitSelect(s ir.Select) (uint32, error) {
	b := kc.b()
	cond, err := kc.emitExpr(s.Cond)
	if err != nil {
		return 0, err
	}

	thenLabel := b.AllocID(spirv.IDLabel)
	elseLabel := b.AllocID(spirv.IDLabel)
	mergeLabel := b.AllocID(spirv.IDLabel)

	b.SelectionMerge(mergeLabel, spirv.SelectionControlNone)
	b.BranchConditional(cond, thenLabel, elseLabel)

	b.OpenBlock(thenLabel)
	tv, err := kc.emitExpr(s.T)
	if err != nil {
		return 0, err
	}
	thenTail := b.CurrentBlockID()
	b.Branch(mergeLabel)

	b.OpenBlock(elseLabel)
	fv, err := kc.emitExpr(s.F)
	if err != nil {
		return 0, err
	}
	elseTail := b.CurrentBlockID()
	b.Branch(mergeLabel)

	b.OpenBlock(mergeLabel)
	typeID := b.TypeID(s.T.Type)
	return b.Phi(typeID, spirv.PhiEdge{Value: tv, Block: thenTail}, spirv.PhiEdge{Value: fv, Block: elseTail}), nil
}

// emitCast converts the represented value between codes, matching the
// direction SPIR-V's conversion opcodes distinguish (float widths,
// int<->float, int<->uint of unequal width). A same-width sign change has
// no dedicated conversion opcode in SPIR-V, so it goes through OpBitcast
// like Reinterpret does.
func (kc *kernelCtx) emitCast(x *ir.Expr, dst ir.Type) (uint32, error) {
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	src := x.Type
	if src.Equal(dst) {
		return xv, nil
	}
	typeID := kc.b().TypeID(dst)
	switch {
	case src.IsFloat() && dst.IsFloat():
		return kc.b().Emit(spirv.OpFConvert, typeID, xv), nil
	case src.IsFloat() && dst.IsUint():
		return kc.b().Emit(spirv.OpConvertFToU, typeID, xv), nil
	case src.IsFloat() && dst.IsInt():
		return kc.b().Emit(spirv.OpConvertFToS, typeID, xv), nil
	case src.IsInt() && dst.IsFloat():
		return kc.b().Emit(spirv.OpConvertSToF, typeID, xv), nil
	case src.IsUint() && dst.IsFloat():
		return kc.b().Emit(spirv.OpConvertUToF, typeID, xv), nil
	case (src.IsInt() || src.IsUint()) && (dst.IsInt() || dst.IsUint()):
		if src.Bits == dst.Bits {
			return kc.b().Emit(spirv.OpBitcast, typeID, xv), nil
		}
		if src.IsInt() {
			return kc.b().Emit(spirv.OpSConvert, typeID, xv), nil
		}
		return kc.b().Emit(spirv.OpUConvert, typeID, xv), nil
	default:
		return 0, fmt.Errorf("emit: unsupported cast %v -> %v", src, dst)
	}
}

func (kc *kernelCtx) emitReinterpret(x *ir.Expr, dst ir.Type) (uint32, error) {
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	if x.Type.Equal(dst) {
		return xv, nil
	}
	typeID := kc.b().TypeID(dst)
	return kc.b().Emit(spirv.OpBitcast, typeID, xv), nil
}

func (kc *kernelCtx) emitRampValue(r ir.Ramp, t ir.Type) (uint32, error) {
	scalarType := t.WithLanes(1)
	scalarTypeID := kc.b().TypeID(scalarType)

	base, err := kc.emitExpr(r.Base)
	if err != nil {
		return 0, err
	}
	stride, err := kc.emitExpr(r.Stride)
	if err != nil {
		return 0, err
	}

	lanes := make([]uint32, r.Lanes)
	lanes[0] = base
	cur := base
	for i := 1; i < r.Lanes; i++ {
		cur = kc.b().Emit(arithOpcode(ir.Add{}, scalarType), scalarTypeID, cur, stride)
		lanes[i] = cur
	}
	typeID := kc.b().TypeID(t)
	return kc.b().Emit(spirv.OpCompositeConstruct, typeID, lanes...), nil
}

func (kc *kernelCtx) emitBroadcastValue(br ir.Broadcast, t ir.Type) (uint32, error) {
	v, err := kc.emitExpr(br.Value)
	if err != nil {
		return 0, err
	}
	typeID := kc.b().TypeID(t)
	constituents := make([]uint32, br.Lanes)
	for i := range constituents {
		constituents[i] = v
	}
	return kc.b().Emit(spirv.OpCompositeConstruct, typeID, constituents...), nil
}

// emitShuffle concatenates one or two source vectors and selects Indices
// from the concatenation, per OpVectorShuffle's two-operand form; a
// single-source Shuffle passes that vector as both operands.
func (kc *kernelCtx) emitShuffle(s ir.Shuffle, t ir.Type) (uint32, error) {
	if len(s.Vectors) == 0 || len(s.Vectors) > 2 {
		return 0, fmt.Errorf("emit: Shuffle: expected 1 or 2 source vectors, got %d", len(s.Vectors))
	}
	v0, err := kc.emitExpr(s.Vectors[0])
	if err != nil {
		return 0, err
	}
	v1 := v0
	if len(s.Vectors) == 2 {
		v1, err = kc.emitExpr(s.Vectors[1])
		if err != nil {
			return 0, err
		}
	}
	typeID := kc.b().TypeID(t)
	operands := append([]uint32{v0, v1}, intSliceToU32(s.Indices)...)
	return kc.b().Emit(spirv.OpVectorShuffle, typeID, operands...), nil
}

// splatConst turns a scalar constant into t's value: the constant itself
// for a scalar t, an OpConstantComposite splat for a vector t (a vector
// immediate has no direct OpConstant form).
func (kc *kernelCtx) splatConst(t ir.Type, scalarID uint32) uint32 {
	if t.Lanes <= 1 {
		return scalarID
	}
	typeID := kc.b().TypeID(t)
	constituents := make([]uint32, t.Lanes)
	for i := range constituents {
		constituents[i] = scalarID
	}
	return kc.b().ConstComposite(typeID, constituents...)
}

func intSliceToU32(xs []int) []uint32 {
	out := make([]uint32, len(xs))
	for i, x := range xs {
		out[i] = uint32(x)
	}
	return out
}
