package intrin

import (
	"math/big"

	"github.com/gogpu/tensorshade/ir"
)

// rule is a single pattern family. It is tried against an
// already bottom-up-rewritten node; scope carries the Let-bound intervals
// live at that point in the tree. A rule returns (replacement, true) on
// match, or (nil, false) to let the next rule in the list try.
type rule func(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool)

// rules is tried in order; the first match wins and the result is fed back
// through the same list before recursing further, so a rule that exposes a
// shape for a later rule (cast collapse enabling a widening match, say) is
// listed ahead of it.
var rules = []rule{
	ruleReinterpretCollapse,
	ruleCastToReinterpret,
	ruleRedundantCastCollapse,
	ruleSubToAddNeg,
	ruleDistributeMulConst,
	ruleWidenRightFold,
	ruleSortedAvg,
	ruleWideningAddSubMul,
	ruleWideningShift,
	ruleRoundingShiftRight,
	ruleRoundingMulShiftRight,
	ruleMulShiftRight,
	ruleRoundingHalving,
	ruleAveraging,
	ruleSaturatingCastClamp,
	ruleSaturatingFold,
	ruleAbsd,
}

// ruleReinterpretCollapse folds reinterpret(reinterpret(x)) into a single
// reinterpret of x at the outer type.
func ruleReinterpretCollapse(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	inner, ok := asReinterpret(e)
	if !ok {
		return nil, false
	}
	x, ok := asReinterpret(inner)
	if !ok {
		return nil, false
	}
	return reinterpret(e.Type, x), true
}

// ruleCastToReinterpret normalizes a same-width int<->int Cast to a
// Reinterpret: for equal bit widths the two's-complement numeric
// conversion and the bit-pattern reinterpretation produce the same pattern,
// and the emitter has a single, cheaper path (OpBitcast) for the latter.
func ruleCastToReinterpret(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	x, ok := asCast(e)
	if !ok {
		return nil, false
	}
	src := x.Type
	dst := e.Type
	if (src.Code != ir.Int && src.Code != ir.Uint) || (dst.Code != ir.Int && dst.Code != ir.Uint) {
		return nil, false
	}
	if src.Code == dst.Code || src.Bits != dst.Bits || src.Lanes != dst.Lanes {
		return nil, false
	}
	return reinterpret(dst, x), true
}

// ruleRedundantCastCollapse folds cast(T, cast(U, x)) to cast(T, x) whenever
// one of T, U can represent the other losslessly, so the intermediate step
// changes nothing observable.
func ruleRedundantCastCollapse(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	mid, ok := asCast(e)
	if !ok {
		return nil, false
	}
	inner, ok := asCast(mid)
	if !ok {
		return nil, false
	}
	t, u := e.Type, mid.Type
	if !canRepresent(t, u) && !canRepresent(u, t) {
		return nil, false
	}
	return cast(t, inner), true
}

// ruleSubToAddNeg rewrites x - c into x + (-c) for a literal c, so a later
// pass never has to recognize widening_sub against a constant when
// widening_add already covers it.
func ruleSubToAddNeg(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	sub, ok := e.Kind.(ir.Sub)
	if !ok {
		return nil, false
	}
	c, ok := ir.AsInt64(sub.Y)
	if !ok {
		return nil, false
	}
	if c == -(1 << 63) {
		return nil, false // negation would overflow int64 itself
	}
	neg := &ir.Expr{Type: sub.Y.Type, Kind: ir.ImmInt{Value: -c}}
	return addExpr(e.Type, sub.X, neg), true
}

// ruleDistributeMulConst distributes a constant multiply across a +/- whose
// operands are themselves casts, so that a subsequent pass over each
// distributed term can recognize widening_mul against the narrow operand.
// The Cast-operand guard keeps the rule from refiring on its own output.
func ruleDistributeMulConst(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	mul, ok := e.Kind.(ir.Mul)
	if !ok {
		return nil, false
	}
	for _, order := range [2][2]*ir.Expr{{mul.X, mul.Y}, {mul.Y, mul.X}} {
		addSide, c := order[0], order[1]
		if !isConstLeaf(c) {
			continue
		}
		var a, b *ir.Expr
		isSub := false
		switch ak := addSide.Kind.(type) {
		case ir.Add:
			a, b = ak.X, ak.Y
		case ir.Sub:
			a, b, isSub = ak.X, ak.Y, true
		default:
			continue
		}
		if _, ok := a.Kind.(ir.Cast); !ok {
			continue
		}
		if _, ok := b.Kind.(ir.Cast); !ok {
			continue
		}
		ma := mulExpr(e.Type, a, c)
		mb := mulExpr(e.Type, b, c)
		if isSub {
			return subExpr(e.Type, ma, mb), true
		}
		return addExpr(e.Type, ma, mb), true
	}
	return nil, false
}

// ruleWideningAddSubMul recognizes both the full-widening form
// (cast(W,x) OP cast(W,y) with x, y narrow and equal-typed) and the
// widen-right form (one operand already at the wide type, the other a
// narrow cast). Sign codes are flexible on the full-widening form: a pair
// of u8 operands cast up to i16 still widens losslessly, so the match
// succeeds with the intrinsic carrying the operands' own sign and a
// Reinterpret restoring the expression's original code — the first lossless
// narrowing in {result code, unsigned, signed} order wins, which here is
// always the operands' shared code.
func ruleWideningAddSubMul(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	var x, y *ir.Expr
	var wideOp, widenRightOp ir.IntrinsicOp
	commutative := true
	switch k := e.Kind.(type) {
	case ir.Add:
		x, y, wideOp, widenRightOp = k.X, k.Y, ir.OpWideningAdd, ir.OpWidenRightAdd
	case ir.Sub:
		x, y, wideOp, widenRightOp = k.X, k.Y, ir.OpWideningSub, ir.OpWidenRightSub
		commutative = false
	case ir.Mul:
		x, y, wideOp, widenRightOp = k.X, k.Y, ir.OpWideningMul, ir.OpWidenRightMul
	default:
		return nil, false
	}

	if cx, okx := asCast(x); okx {
		if cy, oky := asCast(y); oky && cx.Type.Equal(cy.Type) && qualifies(cx.Type) {
			narrow := cx.Type
			wide := narrow.Widen()
			switch {
			case wide.Equal(e.Type):
				return ir.NewCall(e.Type, wideOp, cx, cy), true
			case wide.Bits == e.Type.Bits && wide.Lanes == e.Type.Lanes &&
				(e.Type.Code == ir.Int || e.Type.Code == ir.Uint) &&
				canRepresent(e.Type, narrow):
				call := ir.NewCall(wide, wideOp, cx, cy)
				return reinterpret(e.Type, call), true
			}
		}
	}

	// widen_right: x already wide, y a narrow cast widening to e.Type. A
	// constant wide operand is excluded: folding a literal into a
	// widen_right hides round constants from the rounding-shift rule for no
	// gain.
	if cy, oky := asCast(y); oky && x.Type.Equal(e.Type) && cy.Type.Widen().Equal(e.Type) &&
		qualifies(cy.Type) && !isConstExpr(x) {
		return ir.NewCall(e.Type, widenRightOp, x, cy), true
	}
	if commutative {
		if cx, okx := asCast(x); okx && y.Type.Equal(e.Type) && cx.Type.Widen().Equal(e.Type) &&
			qualifies(cx.Type) && !isConstExpr(y) {
			return ir.NewCall(e.Type, widenRightOp, y, cx), true
		}
	}
	return nil, false
}

// ruleSortedAvg recognizes a + (b - a)/2 in widened arithmetic:
// add(cast(W,a), shift_right(widening_sub(b, a), 1)) binds the `a`
// wildcard twice, so both occurrences must be structurally identical. It
// runs ahead of the widening rule, which would otherwise claim the outer
// add as a widen_right_add.
func ruleSortedAvg(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	add, ok := e.Kind.(ir.Add)
	if !ok {
		return nil, false
	}
	for _, order := range [2][2]*ir.Expr{{add.X, add.Y}, {add.Y, add.X}} {
		castSide, halfSide := order[0], order[1]
		a, ok := asCast(castSide)
		if !ok {
			continue
		}
		shift, ok := ir.AsNamedCall(halfSide, "shift_right")
		if !ok {
			continue
		}
		if c, ok := constValue(shift.Args[1]); !ok || c != 1 {
			continue
		}
		wsub, ok := ir.AsIntrinsic(stripReinterpret(shift.Args[0]), ir.OpWideningSub)
		if !ok {
			continue
		}
		b, a2 := wsub.Args[0], wsub.Args[1]
		if !sameExpr(a, a2) || !a.Type.Equal(b.Type) || !a.Type.Widen().Equal(e.Type) {
			continue
		}
		avg := ir.NewCall(a.Type, ir.OpSortedAvg, a, b)
		return cast(e.Type, avg), true
	}
	return nil, false
}

// ruleWideningShift recognizes shift_left/shift_right of a widening cast as
// the matching widening shift intrinsic.
func ruleWideningShift(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	var op ir.IntrinsicOp
	var call ir.Call
	if c, ok := ir.AsNamedCall(e, "shift_left"); ok {
		call, op = c, ir.OpWideningShiftLeft
	} else if c, ok := ir.AsNamedCall(e, "shift_right"); ok {
		call, op = c, ir.OpWideningShiftRight
	} else {
		return nil, false
	}
	x, ok := asCast(call.Args[0])
	if !ok || !qualifies(x.Type) || !x.Type.Widen().Equal(e.Type) {
		return nil, false
	}
	return ir.NewCall(e.Type, op, x, call.Args[1]), true
}

// ruleWidenRightFold collapses a chain of two widen_right operations of the
// same kind into one widen_right over a widening op of the inner operands:
// widen_right_add(widen_right_add(x,y),z) -> x + widening_add(y,z), and the
// associative analogue for mul; widen_right_sub folds as nested
// subtraction, (x-y)-z = x-(y+z).
func ruleWidenRightFold(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	outer, ok := e.Kind.(ir.Call)
	if !ok {
		return nil, false
	}
	var innerOp ir.IntrinsicOp
	switch outer.Op {
	case ir.OpWidenRightAdd:
		innerOp = ir.OpWidenRightAdd
	case ir.OpWidenRightSub:
		innerOp = ir.OpWidenRightSub
	case ir.OpWidenRightMul:
		innerOp = ir.OpWidenRightMul
	default:
		return nil, false
	}
	z := outer.Args[1]
	inner, ok := ir.AsIntrinsic(outer.Args[0], innerOp)
	if !ok {
		return nil, false
	}
	x, y := inner.Args[0], inner.Args[1]
	if !y.Type.Equal(z.Type) || !y.Type.Widen().Equal(e.Type) {
		return nil, false
	}
	switch outer.Op {
	case ir.OpWidenRightAdd:
		return addExpr(e.Type, x, ir.NewCall(e.Type, ir.OpWideningAdd, y, z)), true
	case ir.OpWidenRightMul:
		return mulExpr(e.Type, x, ir.NewCall(e.Type, ir.OpWideningMul, y, z)), true
	case ir.OpWidenRightSub:
		return subExpr(e.Type, x, ir.NewCall(e.Type, ir.OpWideningAdd, y, z)), true
	}
	return nil, false
}

// flattenAdds unrolls a chain of Add nodes up to depth levels deep into its
// leaf addends, used by ruleRoundingShiftRight to search for an explicit
// round-constant addition without committing to a fixed tree shape.
func flattenAdds(e *ir.Expr, depth int) []*ir.Expr {
	if depth <= 0 {
		return []*ir.Expr{e}
	}
	if add, ok := e.Kind.(ir.Add); ok {
		out := flattenAdds(add.X, depth-1)
		return append(out, flattenAdds(add.Y, depth-1)...)
	}
	return []*ir.Expr{e}
}

func sumTerms(t ir.Type, terms []*ir.Expr) *ir.Expr {
	out := terms[0]
	for _, term := range terms[1:] {
		out = addExpr(t, out, term)
	}
	return out
}

// ruleRoundingShiftRight recognizes shift_right(x + round_const, q) as
// rounding_shift_right(x, q) when round_const is exactly 1<<(q-1). The
// search descends through at most RoundingShiftProbeDepth(bits) levels of
// Add looking for the literal, and the
// rewrite commits only when the remaining sum is provably small enough that
// adding round_const back cannot have wrapped the modular type — i.e. the
// rewrite is only ever applied where it is a no-op on the bit pattern.
func ruleRoundingShiftRight(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	if e.Type.Code != ir.Int && e.Type.Code != ir.Uint {
		return nil, false
	}
	call, ok := ir.AsNamedCall(e, "shift_right")
	if !ok {
		return nil, false
	}
	inner, q := call.Args[0], call.Args[1]
	qLit, ok := constValue(q)
	if !ok || qLit <= 0 {
		return nil, false
	}
	want := int64(1) << uint(qLit-1)

	depth := RoundingShiftProbeDepth(e.Type.Bits)
	if depth < 1 {
		depth = 1
	}
	terms := flattenAdds(inner, depth)
	if len(terms) < 2 {
		return nil, false
	}
	idx := -1
	for i, t := range terms {
		if v, ok := constValue(t); ok && v == want {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	remaining := append(append([]*ir.Expr(nil), terms[:idx]...), terms[idx+1:]...)
	stripped := sumTerms(e.Type, remaining)

	headroom := new(big.Int).Sub(new(big.Int).SetUint64(e.Type.MaxInt()), big.NewInt(want))
	if e.Type.Code == ir.Int {
		headroom = new(big.Int).Sub(big.NewInt(int64(e.Type.MaxInt())), big.NewInt(want))
	}
	if !rc.bounds.UpperBounded(stripped, scope, headroom) {
		return nil, false
	}
	return ir.NewCall(e.Type, ir.OpRoundingShiftRight, stripped, q), true
}

// ruleRoundingMulShiftRight recognizes rounding_shift_right(widening_mul(x,y), q)
// as rounding_mul_shift_right(x, y, q).
func ruleRoundingMulShiftRight(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	outer, ok := ir.AsIntrinsic(e, ir.OpRoundingShiftRight)
	if !ok {
		return nil, false
	}
	inner, ok := ir.AsIntrinsic(outer.Args[0], ir.OpWideningMul)
	if !ok {
		return nil, false
	}
	x, y := inner.Args[0], inner.Args[1]
	if !x.Type.Equal(y.Type) || !x.Type.Equal(e.Type) {
		return nil, false
	}
	return ir.NewCall(e.Type, ir.OpRoundingMulShiftRight, x, y, outer.Args[1]), true
}

// ruleMulShiftRight recognizes shift_right(widening_mul(x,y), q) as
// mul_shift_right(x, y, q).
func ruleMulShiftRight(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	call, ok := ir.AsNamedCall(e, "shift_right")
	if !ok {
		return nil, false
	}
	inner, q := call.Args[0], call.Args[1]
	mulCall, ok := ir.AsIntrinsic(inner, ir.OpWideningMul)
	if !ok {
		return nil, false
	}
	x, y := mulCall.Args[0], mulCall.Args[1]
	if !x.Type.Equal(y.Type) || !x.Type.Equal(e.Type) {
		return nil, false
	}
	return ir.NewCall(e.Type, ir.OpMulShiftRight, x, y, q), true
}

// ruleRoundingHalving recognizes a rounding right shift of a widening add
// by one as rounding_halving_add, both at a narrow-typed shift node and
// through a narrowing cast of a wide-typed one.
func ruleRoundingHalving(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	node := e
	if inner, ok := asCast(e); ok {
		node = inner
	}
	rsr, ok := ir.AsIntrinsic(node, ir.OpRoundingShiftRight)
	if !ok {
		return nil, false
	}
	if c, ok := constValue(rsr.Args[1]); !ok || c != 1 {
		return nil, false
	}
	wadd, ok := ir.AsIntrinsic(rsr.Args[0], ir.OpWideningAdd)
	if !ok {
		return nil, false
	}
	x, y := wadd.Args[0], wadd.Args[1]
	if !x.Type.Equal(y.Type) {
		return nil, false
	}
	out := ir.NewCall(x.Type, ir.OpRoundingHalvingAdd, x, y)
	if !x.Type.Equal(e.Type) {
		if node == e {
			return nil, false
		}
		return cast(e.Type, out), true
	}
	return out, true
}

// ruleAveraging covers the halving shapes: a plain
// right-shift-by-one of a widening add/sub (halving_add / halving_sub,
// matched directly at a narrow-typed shift node or through a narrowing
// cast of a wide-typed one), the widening-add shape plus an explicit +1
// before the shift (rounding_halving_add), and a right-shift-by-one of a
// plain add when the type's own overflow is already undefined (signed
// >= 32 bits, or float) and so no widening step is needed to make the
// rewrite safe.
func ruleAveraging(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	node := e
	viaCast := false
	if inner, ok := asCast(e); ok {
		if _, isShift := ir.AsNamedCall(inner, "shift_right"); isShift {
			node, viaCast = inner, true
		}
	}
	call, ok := ir.AsNamedCall(node, "shift_right")
	if !ok {
		return nil, false
	}
	inner, shift := call.Args[0], call.Args[1]
	one, ok := constValue(shift)
	if !ok || one != 1 {
		return nil, false
	}

	emitAt := func(t ir.Type, op ir.IntrinsicOp, x, y *ir.Expr) (*ir.Expr, bool) {
		out := ir.NewCall(t, op, x, y)
		if t.Equal(e.Type) {
			return out, true
		}
		if viaCast {
			return cast(e.Type, out), true
		}
		return nil, false
	}

	if add, ok := inner.Kind.(ir.Add); ok {
		for _, order := range [2][2]*ir.Expr{{add.X, add.Y}, {add.Y, add.X}} {
			waddSide, constSide := order[0], order[1]
			wadd, ok := ir.AsIntrinsic(waddSide, ir.OpWideningAdd)
			if !ok {
				continue
			}
			if c, ok := constValue(constSide); !ok || c != 1 {
				continue
			}
			x, y := wadd.Args[0], wadd.Args[1]
			if x.Type.Equal(y.Type) {
				return emitAt(x.Type, ir.OpRoundingHalvingAdd, x, y)
			}
		}
	}

	if wadd, ok := ir.AsIntrinsic(stripReinterpret(inner), ir.OpWideningAdd); ok {
		x, y := wadd.Args[0], wadd.Args[1]
		if x.Type.Equal(y.Type) {
			return emitAt(x.Type, ir.OpHalvingAdd, x, y)
		}
	}
	if wsub, ok := ir.AsIntrinsic(stripReinterpret(inner), ir.OpWideningSub); ok {
		x, y := wsub.Args[0], wsub.Args[1]
		if x.Type.Equal(y.Type) {
			return emitAt(x.Type, ir.OpHalvingSub, x, y)
		}
	}

	if add, ok := inner.Kind.(ir.Add); ok && !viaCast {
		overflowUndefined := (e.Type.Code == ir.Int && e.Type.Bits >= 32) || e.Type.Code == ir.Float
		if overflowUndefined && add.X.Type.Equal(e.Type) && add.Y.Type.Equal(e.Type) {
			return ir.NewCall(e.Type, ir.OpHalvingAdd, add.X, add.Y), true
		}
	}
	return nil, false
}

// boundOf extracts the literal integer value of a clamp bound, looking
// through a Broadcast splat.
func boundOf(e *ir.Expr) (int64, bool) { return constValue(e) }

// ruleSaturatingCastClamp recognizes a narrowing cast of a clamp against
// the destination type's own representable range as saturating_cast:
// cast(T, max(min(x, up), lo)) and the min/max-swapped form, plus the
// one-sided variants where the missing bound is implied by x's own proven
// interval.
func ruleSaturatingCastClamp(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	if e.Type.Code != ir.Int && e.Type.Code != ir.Uint {
		return nil, false
	}
	inner, ok := asCast(e)
	if !ok {
		return nil, false
	}
	t := e.Type
	wantLo := t.MinInt()
	wantHi := t.MaxInt()
	if wantHi > uint64(1)<<62 {
		return nil, false // bound not representable as a literal match
	}
	hiBig := new(big.Int).SetUint64(wantHi)
	loBig := big.NewInt(wantLo)

	// Two-sided: max(min(x, up), lo) or min(max(x, lo), up).
	if mx, ok := inner.Kind.(ir.Max); ok {
		if mn, ok := mx.X.Kind.(ir.Min); ok {
			if lo, okL := boundOf(mx.Y); okL && lo == wantLo {
				if hi, okH := boundOf(mn.Y); okH && hi == int64(wantHi) {
					return ir.NewCall(t, ir.OpSaturatingCast, mn.X), true
				}
			}
		}
	}
	if mn, ok := inner.Kind.(ir.Min); ok {
		if mx, ok := mn.X.Kind.(ir.Max); ok {
			if hi, okH := boundOf(mn.Y); okH && hi == int64(wantHi) {
				if lo, okL := boundOf(mx.Y); okL && lo == wantLo {
					return ir.NewCall(t, ir.OpSaturatingCast, mx.X), true
				}
			}
		}
		// One-sided min: the lower bound must be implied by x itself.
		if hi, okH := boundOf(mn.Y); okH && hi == int64(wantHi) {
			if rc.bounds.LowerBounded(mn.X, scope, loBig) {
				return ir.NewCall(t, ir.OpSaturatingCast, mn.X), true
			}
		}
	}
	if mx, ok := inner.Kind.(ir.Max); ok {
		// One-sided max: the upper bound must be implied by x itself.
		if lo, okL := boundOf(mx.Y); okL && lo == wantLo {
			if rc.bounds.UpperBounded(mx.X, scope, hiBig) {
				return ir.NewCall(t, ir.OpSaturatingCast, mx.X), true
			}
		}
	}
	return nil, false
}

// ruleSaturatingFold collapses saturating_cast over a recognized widening
// shape into the dedicated saturating intrinsic: a widening add/sub whose
// operands are already at the destination type becomes saturating_add/sub,
// and a (rounding) right shift of a widening mul becomes the matching
// mul_shift_right variant, whose contract saturates the narrowed result.
func ruleSaturatingFold(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	sc, ok := ir.AsIntrinsic(e, ir.OpSaturatingCast)
	if !ok {
		return nil, false
	}
	arg := stripReinterpret(sc.Args[0])

	if wadd, ok := ir.AsIntrinsic(arg, ir.OpWideningAdd); ok {
		x, y := wadd.Args[0], wadd.Args[1]
		if x.Type.Equal(e.Type) && y.Type.Equal(e.Type) {
			return ir.NewCall(e.Type, ir.OpSaturatingAdd, x, y), true
		}
	}
	if wsub, ok := ir.AsIntrinsic(arg, ir.OpWideningSub); ok {
		x, y := wsub.Args[0], wsub.Args[1]
		if x.Type.Equal(e.Type) && y.Type.Equal(e.Type) {
			return ir.NewCall(e.Type, ir.OpSaturatingSub, x, y), true
		}
	}
	if shift, ok := ir.AsNamedCall(arg, "shift_right"); ok {
		if wmul, ok := ir.AsIntrinsic(shift.Args[0], ir.OpWideningMul); ok {
			x, y := wmul.Args[0], wmul.Args[1]
			if x.Type.Equal(e.Type) && y.Type.Equal(e.Type) {
				return ir.NewCall(e.Type, ir.OpMulShiftRight, x, y, shift.Args[1]), true
			}
		}
	}
	if rsr, ok := ir.AsIntrinsic(arg, ir.OpRoundingShiftRight); ok {
		if wmul, ok := ir.AsIntrinsic(stripCastTo(rsr.Args[0], ir.OpWideningMul), ir.OpWideningMul); ok {
			x, y := wmul.Args[0], wmul.Args[1]
			if x.Type.Equal(e.Type) && y.Type.Equal(e.Type) {
				return ir.NewCall(e.Type, ir.OpRoundingMulShiftRight, x, y, rsr.Args[1]), true
			}
		}
	}
	return nil, false
}

// stripCastTo looks through a lossless cast wrapper when the wrapped node
// is an intrinsic call of op; otherwise it returns e unchanged.
func stripCastTo(e *ir.Expr, op ir.IntrinsicOp) *ir.Expr {
	if inner, ok := asCast(e); ok {
		if _, isOp := ir.AsIntrinsic(inner, op); isOp && canRepresent(e.Type, inner.Type) {
			return inner
		}
	}
	return e
}

// ruleAbsd recognizes abs(widening_sub(x,y)) as cast(absd(x,y)): absd's
// result fits in the unsigned type at x and y's own (narrow) width, since
// the magnitude of their difference never exceeds that range.
func ruleAbsd(rc *recognizer, e *ir.Expr, scope ir.Scope) (*ir.Expr, bool) {
	call, ok := ir.AsNamedCall(e, "abs")
	if !ok {
		return nil, false
	}
	wsub, ok := ir.AsIntrinsic(call.Args[0], ir.OpWideningSub)
	if !ok {
		return nil, false
	}
	x, y := wsub.Args[0], wsub.Args[1]
	if !x.Type.Equal(y.Type) {
		return nil, false
	}
	absd := ir.NewCall(x.Type.WithCode(ir.Uint), ir.OpAbsd, x, y)
	return cast(e.Type, absd), true
}
