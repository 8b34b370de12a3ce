package intrin

import "github.com/gogpu/tensorshade/ir"

// LowerSemantic expands an intrinsic Call into ordinary arithmetic the same
// way Lower does, but always routes through the doubled-width type, even
// where that is wasteful. This is the reference path the SPIR-V emitter
// falls back to when the target has no direct opcode for an intrinsic,
// and it is also the path the recognizer round-trip test drives:
// recognize(LowerSemantic(I(args))) must rewrite back to I(args).
func LowerSemantic(e *ir.Expr) *ir.Expr {
	c, ok := e.Kind.(ir.Call)
	if !ok || c.Op == ir.OpNone {
		panic("intrin: LowerSemantic: not an intrinsic call")
	}
	t := e.Type
	switch c.Op {
	case ir.OpWideningAdd, ir.OpWideningSub, ir.OpWideningMul,
		ir.OpWidenRightAdd, ir.OpWidenRightSub, ir.OpWidenRightMul,
		ir.OpWideningShiftLeft, ir.OpWideningShiftRight:
		// Already the canonical widened form; no further promotion needed.
		return lowerWideningFamily(t, c)

	case ir.OpRoundingShiftRight:
		return semRoundingShiftRight(t, c.Args[0], c.Args[1])
	case ir.OpRoundingShiftLeft:
		return semRoundingShiftLeft(t, c.Args[0], c.Args[1])

	case ir.OpSaturatingAdd:
		wide := t.Widen()
		return semSaturating(t, addExpr(wide, cast(wide, c.Args[0]), cast(wide, c.Args[1])), t)
	case ir.OpSaturatingSub:
		// Subtraction widens through the signed type so an unsigned
		// underflow is visible to the clamp rather than wrapped away.
		wide := t.Widen().WithCode(ir.Int)
		return semSaturating(t, subExpr(wide, cast(wide, c.Args[0]), cast(wide, c.Args[1])), t)
	case ir.OpSaturatingCast:
		return lowerSaturatingCast(t, c.Args[0])

	case ir.OpHalvingAdd:
		return semHalving(t, addExpr(t.Widen(), cast(t.Widen(), c.Args[0]), cast(t.Widen(), c.Args[1])))
	case ir.OpHalvingSub:
		return semHalving(t, subExpr(t.Widen(), cast(t.Widen(), c.Args[0]), cast(t.Widen(), c.Args[1])))
	case ir.OpRoundingHalvingAdd:
		wide := t.Widen()
		sum := addExpr(wide, addExpr(wide, cast(wide, c.Args[0]), cast(wide, c.Args[1])), immInt(wide, 1))
		return semHalving(t, sum)

	case ir.OpMulShiftRight:
		return semMulShiftRight(t, c.Args[0], c.Args[1], c.Args[2], false)
	case ir.OpRoundingMulShiftRight:
		return semMulShiftRight(t, c.Args[0], c.Args[1], c.Args[2], true)

	case ir.OpAbsd:
		return semAbsd(t, c.Args[0], c.Args[1])
	case ir.OpSortedAvg:
		wide := c.Args[0].Type.Widen()
		diff := subExpr(wide, cast(wide, c.Args[1]), cast(wide, c.Args[0]))
		half := ir.ShiftRight(diff, immInt(wide, 1))
		sum := addExpr(wide, cast(wide, c.Args[0]), half)
		return cast(t, sum)

	default:
		panic("intrin: LowerSemantic: unhandled op " + c.Op.String())
	}
}

// semRoundingShiftRight is the textbook (a + (1<<(y-1))) >> y form, carried
// out at double width so the addition can never wrap regardless of x's
// own headroom.
func semRoundingShiftRight(t ir.Type, x, y *ir.Expr) *ir.Expr {
	wide := t.Widen()
	wx := cast(wide, x)
	var rounded *ir.Expr
	if yv, ok := ir.AsInt64(y); ok {
		// Literal shift: resolve the sign guard now, so the reference
		// expansion is the plain add-then-shift form the recognizer's
		// round-constant search expects.
		if yv > 0 {
			rounded = addExpr(wide, wx, immInt(wide, int64(1)<<uint(yv-1)))
		} else {
			rounded = wx
		}
	} else {
		half := ir.ShiftLeft(immInt(wide, 1), sub(y.Type, y, immInt(y.Type, 1)))
		rounded = selectExpr(wide, gt(y, immInt(y.Type, 0)), addExpr(wide, wx, half), wx)
	}
	shifted := ir.ShiftRight(rounded, y)
	return cast(t, shifted)
}

func semRoundingShiftLeft(t ir.Type, x, y *ir.Expr) *ir.Expr {
	wide := t.Widen()
	left := ir.ShiftLeft(cast(wide, x), y)
	negY := sub(y.Type, zeroOf(y.Type), y)
	right := semRoundingShiftRight(t, x, negY)
	return selectExpr(t, ge(y, immInt(y.Type, 0)), cast(t, left), right)
}

func semSaturating(t ir.Type, wideResult *ir.Expr, dst ir.Type) *ir.Expr {
	return lowerSaturatingCast(dst, wideResult)
}

func semHalving(t ir.Type, wideSum *ir.Expr) *ir.Expr {
	if t.Code == ir.Float {
		return lowerHalvingAdd(t, cast(t, wideSum), zeroOf(t))
	}
	half := ir.ShiftRight(wideSum, immInt(wideSum.Type, 1))
	return cast(t, half)
}

func semMulShiftRight(t ir.Type, x, y, q *ir.Expr, rounding bool) *ir.Expr {
	wide := x.Type.Widen()
	product := mulExpr(wide, cast(wide, x), cast(wide, y))
	if rounding {
		if qv, ok := ir.AsInt64(q); ok {
			if qv > 0 {
				product = addExpr(wide, product, immInt(wide, int64(1)<<uint(qv-1)))
			}
		} else {
			half := ir.ShiftLeft(immInt(wide, 1), sub(q.Type, q, immInt(q.Type, 1)))
			product = selectExpr(wide, gt(q, immInt(q.Type, 0)), addExpr(wide, product, half), product)
		}
	}
	shifted := ir.ShiftRight(product, q)
	return lowerSaturatingCast(t, shifted)
}

// semAbsd is written as literally abs(widening_sub(x,y)) rather than a
// native max(diff,-diff) so that recognizing it (round-trip invariant (ii))
// reconstructs absd via the same shape the recognizer looks for elsewhere.
func semAbsd(t ir.Type, x, y *ir.Expr) *ir.Expr {
	wide := x.Type.Widen().WithCode(ir.Int)
	wsub := ir.NewCall(wide, ir.OpWideningSub, x, y)
	return cast(t, ir.Abs(wide, wsub))
}
