package emit

import (
	"fmt"

	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// emitLoad reads from a named buffer. A vector load whose index is a
// unit-stride Ramp over a vector-element buffer collapses to one wide
// access at base/lanes; any other vector load gathers lane by lane and
// reassembles with OpCompositeConstruct.
func (kc *kernelCtx) emitLoad(l ir.Load, resultType ir.Type) (uint32, error) {
	buf, ok := kc.scope.lookupBuffer(l.Name)
	if !ok {
		return 0, fmt.Errorf("emit: Load: unknown buffer %q", l.Name)
	}

	var val uint32
	if idx, ok, err := kc.wideAccessIndex(buf, l.Index, resultType); err != nil {
		return 0, err
	} else if ok {
		val = kc.scalarLoadAt(buf, idx)
	} else if resultType.Lanes == 1 {
		idx, err := kc.indexLane(l.Index, 0)
		if err != nil {
			return 0, err
		}
		val = kc.scalarLoadAt(buf, idx)
	} else {
		lanes := make([]uint32, resultType.Lanes)
		for i := range lanes {
			idx, err := kc.indexLane(l.Index, i)
			if err != nil {
				return 0, err
			}
			lanes[i] = kc.scalarLoadAt(buf, idx)
		}
		typeID := kc.b().TypeID(resultType)
		val = kc.b().Emit(spirv.OpCompositeConstruct, typeID, lanes...)
	}

	if l.Predicate == nil {
		return val, nil
	}
	// A predicated load reads memory regardless of the predicate (no lane
	// is skipped, since a load has no side effect to guard) and selects a
	// zero value for lanes the predicate rejects.
	pred, err := kc.emitExpr(l.Predicate)
	if err != nil {
		return 0, err
	}
	typeID := kc.b().TypeID(resultType)
	zero := kc.zeroOf(resultType)
	return kc.b().Emit(spirv.OpSelect, typeID, pred, val, zero), nil
}

// emitStore writes Value into a named buffer. A predicated store is
// scalarized into one guarded scalar store per lane, inline, rather than
// as a separate IR rewrite pass.
func (kc *kernelCtx) emitStore(s ir.Store) error {
	buf, ok := kc.scope.lookupBuffer(s.Name)
	if !ok {
		return fmt.Errorf("emit: Store: unknown buffer %q", s.Name)
	}
	val, err := kc.emitExpr(s.Value)
	if err != nil {
		return err
	}

	if s.Predicate == nil {
		if idx, ok, err := kc.wideAccessIndex(buf, s.Index, s.Value.Type); err != nil {
			return err
		} else if ok {
			kc.scalarStoreAt(buf, idx, val)
			return nil
		}
	}

	lanes := int(s.Value.Type.Lanes)
	if lanes == 1 {
		idx, err := kc.indexLane(s.Index, 0)
		if err != nil {
			return err
		}
		if s.Predicate == nil {
			kc.scalarStoreAt(buf, idx, val)
			return nil
		}
		pred, err := kc.emitExpr(s.Predicate)
		if err != nil {
			return err
		}
		return kc.guardedStore(pred, func() { kc.scalarStoreAt(buf, idx, val) })
	}

	var predVec uint32
	if s.Predicate != nil {
		predVec, err = kc.emitExpr(s.Predicate)
		if err != nil {
			return err
		}
	}
	scalarTypeID := kc.b().TypeID(s.Value.Type.WithLanes(1))
	boolScalarTypeID := kc.b().TypeID(ir.BoolType())
	for i := 0; i < lanes; i++ {
		idx, err := kc.indexLane(s.Index, i)
		if err != nil {
			return err
		}
		lane := kc.b().CompositeExtract(scalarTypeID, val, uint32(i))
		if s.Predicate == nil {
			kc.scalarStoreAt(buf, idx, lane)
			continue
		}
		predLane := kc.b().CompositeExtract(boolScalarTypeID, predVec, uint32(i))
		if err := kc.guardedStore(predLane, func() { kc.scalarStoreAt(buf, idx, lane) }); err != nil {
			return err
		}
	}
	return nil
}

// wideAccessIndex reports whether a vector access of valueType into buf can
// be one wide memory op: the index must be a unit-stride Ramp whose lane
// count matches the buffer's own vector element type. The returned id is
// the element index in vector units, base/lanes.
func (kc *kernelCtx) wideAccessIndex(buf bufferBinding, index *ir.Expr, valueType ir.Type) (uint32, bool, error) {
	if valueType.Lanes <= 1 || buf.elem.Lanes != valueType.Lanes {
		return 0, false, nil
	}
	ramp, ok := index.Kind.(ir.Ramp)
	if !ok || ramp.Lanes != int(valueType.Lanes) {
		return 0, false, nil
	}
	if stride, ok := ir.AsInt64(ramp.Stride); !ok || stride != 1 {
		return 0, false, nil
	}
	base, err := kc.emitExpr(ramp.Base)
	if err != nil {
		return 0, false, err
	}
	b := kc.b()
	baseType := ramp.Base.Type
	typeID := b.TypeID(baseType)
	lanesConst := b.ConstInt(baseType, int64(valueType.Lanes))
	div := spirv.OpSDiv
	if baseType.IsUint() {
		div = spirv.OpUDiv
	}
	return b.Emit(div, typeID, base, lanesConst), true, nil
}

// indexLane returns the scalar element index for lane of a Load/Store
// index expression, special-casing the two structural index shapes the
// recognizer produces (Ramp, Broadcast) and falling back to extracting a
// lane from a fully general vector-valued index.
func (kc *kernelCtx) indexLane(idx *ir.Expr, lane int) (uint32, error) {
	switch k := idx.Kind.(type) {
	case ir.Ramp:
		base, err := kc.emitExpr(k.Base)
		if err != nil {
			return 0, err
		}
		if lane == 0 {
			return base, nil
		}
		stride, err := kc.emitExpr(k.Stride)
		if err != nil {
			return 0, err
		}
		typeID := kc.b().TypeID(k.Base.Type)
		off := kc.b().ConstInt(k.Base.Type, int64(lane))
		scaled := kc.b().Emit(spirv.OpIMul, typeID, stride, off)
		return kc.b().Emit(spirv.OpIAdd, typeID, base, scaled), nil

	case ir.Broadcast:
		return kc.emitExpr(k.Value)

	default:
		val, err := kc.emitExpr(idx)
		if err != nil {
			return 0, err
		}
		if idx.Type.Lanes == 1 {
			return val, nil
		}
		scalarTypeID := kc.b().TypeID(idx.Type.WithLanes(1))
		return kc.b().CompositeExtract(scalarTypeID, val, uint32(lane)), nil
	}
}

func (kc *kernelCtx) scalarLoadAt(buf bufferBinding, idx uint32) uint32 {
	b := kc.b()
	elemPtrType := b.PointerTypeID(buf.storage, buf.elemID)
	ptr := kc.elemPointer(buf, elemPtrType, idx)
	return b.Emit(spirv.OpLoad, buf.elemID, ptr)
}

func (kc *kernelCtx) scalarStoreAt(buf bufferBinding, idx, val uint32) {
	b := kc.b()
	elemPtrType := b.PointerTypeID(buf.storage, buf.elemID)
	ptr := kc.elemPointer(buf, elemPtrType, idx)
	b.EmitVoid(spirv.OpStore, ptr, val)
}

func (kc *kernelCtx) elemPointer(buf bufferBinding, elemPtrType, idx uint32) uint32 {
	b := kc.b()
	if buf.wrapped {
		zero := b.ConstUint(ir.UintOf(32), 0)
		return b.AccessChain(elemPtrType, buf.base, zero, idx)
	}
	return b.AccessChain(elemPtrType, buf.base, idx)
}

// guardedStore wraps store in an if(pred) diamond with no else arm — the
// scalarized form of one lane of a predicated store.
func (kc *kernelCtx) guardedStore(pred uint32, store func()) error {
	b := kc.b()
	mergeLabel := b.AllocID(spirv.IDLabel)
	thenLabel := b.AllocID(spirv.IDLabel)
	b.SelectionMerge(mergeLabel, spirv.SelectionControlNone)
	b.BranchConditional(pred, thenLabel, mergeLabel)
	b.OpenBlock(thenLabel)
	store()
	b.Branch(mergeLabel)
	b.OpenBlock(mergeLabel)
	return nil
}

// zeroOf returns a zero constant of t, broadcasting a scalar zero across
// lanes for a vector type.
func (kc *kernelCtx) zeroOf(t ir.Type) uint32 {
	b := kc.b()
	scalar := t.WithLanes(1)
	var zs uint32
	switch {
	case scalar.IsFloat():
		if scalar.Bits == 64 {
			zs = b.ConstFloat64(0)
		} else {
			zs = b.ConstFloat32(0)
		}
	case scalar.IsBool():
		zs = b.ConstBool(false)
	default:
		zs = b.ConstUint(scalar, 0)
	}
	if t.Lanes == 1 {
		return zs
	}
	typeID := b.TypeID(t)
	constituents := make([]uint32, t.Lanes)
	for i := range constituents {
		constituents[i] = zs
	}
	return b.ConstComposite(typeID, constituents...)
}
