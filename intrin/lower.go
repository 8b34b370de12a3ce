package intrin

import "github.com/gogpu/tensorshade/ir"

// Lower expands a single intrinsic Call into the ordinary arithmetic that
// implements it, picking the cheapest native-width formula available
// rather than always promoting to the doubled type. Lower panics if e is not an
// intrinsic Call.
func Lower(e *ir.Expr) *ir.Expr {
	c, ok := e.Kind.(ir.Call)
	if !ok || c.Op == ir.OpNone {
		panic("intrin: Lower: not an intrinsic call")
	}
	switch c.Op {
	case ir.OpWideningAdd, ir.OpWideningSub, ir.OpWideningMul,
		ir.OpWidenRightAdd, ir.OpWidenRightSub, ir.OpWidenRightMul,
		ir.OpWideningShiftLeft, ir.OpWideningShiftRight:
		return lowerWideningFamily(e.Type, c)

	case ir.OpRoundingShiftLeft:
		return lowerRoundingShiftLeft(e.Type, c.Args[0], c.Args[1])
	case ir.OpRoundingShiftRight:
		return lowerRoundingShiftRight(e.Type, c.Args[0], c.Args[1])

	case ir.OpSaturatingAdd:
		return lowerSaturatingAdd(e.Type, c.Args[0], c.Args[1])
	case ir.OpSaturatingSub:
		return lowerSaturatingSub(e.Type, c.Args[0], c.Args[1])
	case ir.OpSaturatingCast:
		return lowerSaturatingCast(e.Type, c.Args[0])

	case ir.OpHalvingAdd:
		return lowerHalvingAdd(e.Type, c.Args[0], c.Args[1])
	case ir.OpHalvingSub:
		return LowerSemantic(e)
	case ir.OpRoundingHalvingAdd:
		return lowerRoundingHalvingAdd(e.Type, c.Args[0], c.Args[1])

	case ir.OpMulShiftRight:
		return lowerMulShiftRight(e.Type, c.Args[0], c.Args[1], c.Args[2])
	case ir.OpRoundingMulShiftRight:
		if e.Type.Code == ir.Int && e.Type.Bits == 32 {
			if q, ok := ir.AsInt64(c.Args[2]); ok && q == 31 {
				return lowerRoundingMulShiftRight32By31(e.Type, c.Args[0], c.Args[1])
			}
		}
		return lowerRoundingMulShiftRight(e.Type, c.Args[0], c.Args[1], c.Args[2])

	case ir.OpAbsd:
		return lowerAbsd(e.Type, c.Args[0], c.Args[1])
	case ir.OpSortedAvg:
		return lowerSortedAvg(e.Type, c.Args[0], c.Args[1])

	default:
		panic("intrin: Lower: unhandled op " + c.Op.String())
	}
}

func immInt(t ir.Type, v int64) *ir.Expr   { return &ir.Expr{Type: t, Kind: ir.ImmInt{Value: v}} }
func immUint(t ir.Type, v uint64) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.ImmUint{Value: v}} }

func zeroOf(t ir.Type) *ir.Expr {
	if t.Code == ir.Uint {
		return immUint(t, 0)
	}
	return immInt(t, 0)
}

func maxOf(t ir.Type) *ir.Expr {
	if t.Code == ir.Uint {
		return immUint(t, t.MaxInt())
	}
	return immInt(t, int64(t.MaxInt()))
}

func minOf(t ir.Type) *ir.Expr {
	if t.Code == ir.Uint {
		return immUint(t, 0)
	}
	return immInt(t, t.MinInt())
}

func selectExpr(t ir.Type, cond, a, b *ir.Expr) *ir.Expr {
	return &ir.Expr{Type: t, Kind: ir.Select{Cond: cond, T: a, F: b}}
}

func ge(x, y *ir.Expr) *ir.Expr  { return &ir.Expr{Type: ir.BoolType(), Kind: ir.GE{X: x, Y: y}} }
func gt(x, y *ir.Expr) *ir.Expr  { return &ir.Expr{Type: ir.BoolType(), Kind: ir.GT{X: x, Y: y}} }
func lt(x, y *ir.Expr) *ir.Expr  { return &ir.Expr{Type: ir.BoolType(), Kind: ir.LT{X: x, Y: y}} }
func and(x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: ir.BoolType(), Kind: ir.And{X: x, Y: y}} }
func or(x, y *ir.Expr) *ir.Expr  { return &ir.Expr{Type: ir.BoolType(), Kind: ir.Or{X: x, Y: y}} }
func sub(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Sub{X: x, Y: y}} }
func mul(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Mul{X: x, Y: y}} }
func mod(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Mod{X: x, Y: y}} }
func maxE(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Max{X: x, Y: y}} }

// lowerWideningFamily implements every widening op as the natural
// double-width native form: there is no cheaper formula than computing at
// the wider width, since that width is exactly what the op promises.
func lowerWideningFamily(t ir.Type, c ir.Call) *ir.Expr {
	switch c.Op {
	case ir.OpWideningAdd:
		return addExpr(t, cast(t, c.Args[0]), cast(t, c.Args[1]))
	case ir.OpWideningSub:
		return subExpr(t, cast(t, c.Args[0]), cast(t, c.Args[1]))
	case ir.OpWideningMul:
		return mulExpr(t, cast(t, c.Args[0]), cast(t, c.Args[1]))
	case ir.OpWidenRightAdd:
		return addExpr(t, c.Args[0], cast(t, c.Args[1]))
	case ir.OpWidenRightSub:
		return subExpr(t, c.Args[0], cast(t, c.Args[1]))
	case ir.OpWidenRightMul:
		return mulExpr(t, c.Args[0], cast(t, c.Args[1]))
	case ir.OpWideningShiftLeft:
		return ir.ShiftLeft(cast(t, c.Args[0]), c.Args[1])
	case ir.OpWideningShiftRight:
		return ir.ShiftRight(cast(t, c.Args[0]), c.Args[1])
	default:
		panic("intrin: lowerWideningFamily: unreachable")
	}
}

// lowerRoundingShiftRight computes round(x / 2^y) without ever forming
// x + (1<<(y-1)) at the original width: shift first, then add back the
// highest discarded bit. The identity (x + 2^(y-1)) >> y ==
// (x >> y) + bit(x, y-1) holds for all x under floor shifts, and the
// shifted value plus a 0/1 bit can never overflow. The shift on x itself
// stays at x's own signedness (arithmetic for signed), while the rounding
// bit is read from the unsigned pattern so a negative value's bit isn't
// sign-smeared. A shift amount that may be negative at run time falls back
// to an explicit direction select.
func lowerRoundingShiftRight(t ir.Type, x, y *ir.Expr) *ir.Expr {
	rounded := roundedRightShift(t, x, y)
	if yv, ok := ir.AsInt64(y); ok && yv > 0 {
		return rounded
	}
	negY := sub(y.Type, zeroOf(y.Type), y)
	left := ir.ShiftLeft(x, negY)
	return selectExpr(t, gt(y, immInt(y.Type, 0)), rounded, left)
}

func roundedRightShift(t ir.Type, x, y *ir.Expr) *ir.Expr {
	ut := t.WithCode(ir.Uint)
	shifted := ir.ShiftRight(x, y)
	prevShift := sub(y.Type, y, immInt(y.Type, 1))
	bit := mod(ut, ir.ShiftRight(reinterpret(ut, x), prevShift), immUint(ut, 2))
	return addExpr(t, shifted, reinterpret(t, bit))
}

func lowerRoundingShiftLeft(t ir.Type, x, y *ir.Expr) *ir.Expr {
	left := ir.ShiftLeft(x, y)
	negY := sub(y.Type, zeroOf(y.Type), y)
	right := roundedRightShift(t, x, negY)
	return selectExpr(t, ge(y, immInt(y.Type, 0)), left, right)
}

// lowerSaturatingAdd uses the classic branchless overflow test instead of
// promoting to a wider type: unsigned overflow shows up as the sum
// wrapping below either input; signed overflow shows up as the sum's sign
// disagreeing with both inputs' shared sign.
func lowerSaturatingAdd(t ir.Type, x, y *ir.Expr) *ir.Expr {
	sum := addExpr(t, x, y)
	if t.Code == ir.Uint {
		overflow := lt(sum, x)
		return selectExpr(t, overflow, maxOf(t), sum)
	}
	z := zeroOf(t)
	posOverflow := and(and(ge(x, z), ge(y, z)), lt(sum, z))
	negOverflow := and(and(lt(x, z), lt(y, z)), ge(sum, z))
	return selectExpr(t, posOverflow, maxOf(t), selectExpr(t, negOverflow, minOf(t), sum))
}

func lowerSaturatingSub(t ir.Type, x, y *ir.Expr) *ir.Expr {
	diff := subExpr(t, x, y)
	if t.Code == ir.Uint {
		underflow := lt(x, y)
		return selectExpr(t, underflow, zeroOf(t), diff)
	}
	z := zeroOf(t)
	posOverflow := and(and(ge(x, z), lt(y, z)), lt(diff, z))
	negOverflow := and(and(lt(x, z), ge(y, z)), ge(diff, z))
	return selectExpr(t, posOverflow, maxOf(t), selectExpr(t, negOverflow, minOf(t), diff))
}

// lowerSaturatingCast: a float source
// clamps the low end via max(a, t.min()) (always exactly representable)
// and the high end via an explicit compare-and-select; float destinations
// clamp infinities to the target's own ±max; everything else is a plain
// compare-and-clamp at the source's own type.
func lowerSaturatingCast(t ir.Type, x *ir.Expr) *ir.Expr {
	src := x.Type
	if t.Code == ir.Float {
		if src.Code != ir.Float {
			return cast(t, x)
		}
		bound := floatMax(t.Bits)
		clamped := maxE(src, x, negFloat(src, bound))
		return cast(t, minFloat(src, clamped, floatImm(src, bound)))
	}
	if src.Code == ir.Float {
		loF := floatImm(src, float64(t.MinInt()))
		clippedLow := maxE(src, x, loF)
		hiF := floatImm(src, floatHi(t))
		tooHigh := ge(clippedLow, hiF)
		return selectExpr(t, tooHigh, maxConstOf(t), cast(t, clippedLow))
	}
	// Integer to integer: a branchless clamp at the source's own width.
	// Each bound is applied only when the source can actually exceed it,
	// which is also exactly when the bound is representable at src.
	v := x
	if needsHighClamp(t, src) {
		v = minFloat(src, v, boundImm(src, int64(t.MaxInt())))
	}
	if needsLowClamp(t, src) {
		v = maxE(src, v, boundImm(src, t.MinInt()))
	}
	return cast(t, v)
}

func needsHighClamp(t, src ir.Type) bool {
	switch {
	case src.Code == ir.Uint && t.Code == ir.Uint:
		return src.Bits > t.Bits
	case src.Code == ir.Uint && t.Code == ir.Int:
		return src.Bits >= t.Bits
	case src.Code == ir.Int && t.Code == ir.Uint:
		return src.Bits > t.Bits+1
	default: // int -> int
		return src.Bits > t.Bits
	}
}

func needsLowClamp(t, src ir.Type) bool {
	if src.Code != ir.Int {
		return false
	}
	if t.Code == ir.Uint {
		return true
	}
	return src.Bits > t.Bits
}

// boundImm builds the clamp bound as an immediate of the source's type,
// splat across its lanes.
func boundImm(src ir.Type, v int64) *ir.Expr {
	scalar := src.WithLanes(1)
	var imm *ir.Expr
	if scalar.Code == ir.Uint {
		imm = immUint(scalar, uint64(v))
	} else {
		imm = immInt(scalar, v)
	}
	if src.Lanes > 1 {
		return &ir.Expr{Type: src, Kind: ir.Broadcast{Value: imm, Lanes: int(src.Lanes)}}
	}
	return imm
}

func maxConstOf(t ir.Type) *ir.Expr {
	if t.Code == ir.Uint {
		return immUint(t, t.MaxInt())
	}
	return immInt(t, int64(t.MaxInt()))
}

func minConstOf(t ir.Type) *ir.Expr {
	if t.Code == ir.Uint {
		return immUint(t, 0)
	}
	return immInt(t, t.MinInt())
}

func castedBound(dst ir.Type, boundAtOtherType *ir.Expr) *ir.Expr {
	return cast(dst, boundAtOtherType)
}

func floatImm(t ir.Type, v float64) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.ImmFloat{Value: v}} }

func negFloat(t ir.Type, v float64) *ir.Expr { return floatImm(t, -v) }

func minFloat(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Min{X: x, Y: y}} }

func floatMax(bits uint8) float64 {
	if bits == 32 {
		return 3.4028234663852886e+38
	}
	return 1.7976931348623157e+308
}

func floatHi(t ir.Type) float64 {
	if t.Code == ir.Uint && t.Bits == 64 {
		return 18446744073709551615.0
	}
	return float64(t.MaxInt())
}

// lowerHalvingAdd computes floor((x+y)/2) via Hacker's Delight's
// overflow-free averaging identity (x>>1) + (y>>1) + (x&y&1). The halves
// shift at x's own signedness so a negative operand floors correctly; only
// the carry term works on the unsigned patterns, where the parity product
// is a plain 0/1 multiply.
func lowerHalvingAdd(t ir.Type, x, y *ir.Expr) *ir.Expr {
	if t.Code == ir.Float {
		half := floatImm(t.WithLanes(1), 0.5)
		if t.Lanes > 1 {
			half = &ir.Expr{Type: t, Kind: ir.Broadcast{Value: half, Lanes: int(t.Lanes)}}
		}
		return mul(t, addExpr(t, x, y), half)
	}
	halfX := ir.ShiftRight(x, immInt(t, 1))
	halfY := ir.ShiftRight(y, immInt(t, 1))
	sum := addExpr(t, addExpr(t, halfX, halfY), halvingCarry(t, x, y, false))
	return sum
}

// lowerRoundingHalvingAdd is the same identity with the carry widened to a
// parity-or, (x>>1) + (y>>1) + ((x|y)&1) == floor((x+y+1)/2).
func lowerRoundingHalvingAdd(t ir.Type, x, y *ir.Expr) *ir.Expr {
	if t.Code == ir.Float {
		return lowerHalvingAdd(t, x, y)
	}
	halfX := ir.ShiftRight(x, immInt(t, 1))
	halfY := ir.ShiftRight(y, immInt(t, 1))
	sum := addExpr(t, addExpr(t, halfX, halfY), halvingCarry(t, x, y, true))
	return sum
}

// halvingCarry builds the 0/1 carry term of the averaging identity from
// the operands' unsigned parities: their product for the truncating form,
// their max (parity-or) for the rounding form.
func halvingCarry(t ir.Type, x, y *ir.Expr, rounding bool) *ir.Expr {
	ut := t.WithCode(ir.Uint)
	parityX := mod(ut, reinterpret(ut, x), immUint(ut, 2))
	parityY := mod(ut, reinterpret(ut, y), immUint(ut, 2))
	var carry *ir.Expr
	if rounding {
		carry = maxE(ut, parityX, parityY)
	} else {
		carry = mul(ut, parityX, parityY)
	}
	return reinterpret(t, carry)
}

// lowerMulShiftRight and lowerRoundingMulShiftRight go through the widened
// type: the product alone already needs double width, so there is no
// native-width shortcut for the general case (the one case that has one —
// i32 at shift 31 — is handled separately below).
func lowerMulShiftRight(t ir.Type, x, y, q *ir.Expr) *ir.Expr {
	wide := x.Type.Widen()
	product := mulExpr(wide, cast(wide, x), cast(wide, y))
	shifted := ir.ShiftRight(product, q)
	return lowerSaturatingCast(t, shifted)
}

func lowerRoundingMulShiftRight(t ir.Type, x, y, q *ir.Expr) *ir.Expr {
	wide := x.Type.Widen()
	product := mulExpr(wide, cast(wide, x), cast(wide, y))
	half := ir.ShiftLeft(immInt(wide, 1), sub(q.Type, q, immInt(q.Type, 1)))
	rounded := selectExpr(wide, gt(q, immInt(q.Type, 0)), addExpr(wide, product, half), product)
	shifted := ir.ShiftRight(rounded, q)
	return lowerSaturatingCast(t, shifted)
}

// lowerRoundingMulShiftRight32By31 is the hand-unrolled 16x16 partial
// product scheme: splitting each i32
// operand at 16 bits avoids ever forming a 64-bit intermediate.
//
// With x = a*2^16 + b and y = c*2^16 + d (a, c signed high halves; b, d
// unsigned low halves), (x*y + 2^30) >> 31 equals
//
//	2*a*c + (a*d + b*c + (b*d >> 16) + 2^14) >> 15
//
// Each 16x16 product fits i32 (or u32 for b*d), and only a*d + b*c can
// overflow — which is exactly where halving_add comes in: since the term
// is shifted a further 14 bits after the halving, the parity bit the
// halving discards can never reach the result. The 2*a*c top half is
// folded in as a*c + (a*c + T) with the outer add saturating, so the only
// value that can exceed i32 range is the one the contract clamps.
func lowerRoundingMulShiftRight32By31(t ir.Type, x, y *ir.Expr) *ir.Expr {
	i32 := t
	u32 := t.WithCode(ir.Uint)
	low16 := immUint(u32, 1<<16)

	a := ir.ShiftRight(x, immInt(i32, 16))
	c := ir.ShiftRight(y, immInt(i32, 16))
	bU := mod(u32, reinterpret(u32, x), low16)
	dU := mod(u32, reinterpret(u32, y), low16)
	b := cast(i32, bU)
	d := cast(i32, dU)

	ad := mulExpr(i32, a, d)
	bc := mulExpr(i32, b, c)
	bdHigh := cast(i32, ir.ShiftRight(mulExpr(u32, bU, dU), immInt(u32, 16)))

	s := addExpr(i32, addExpr(i32, ad, bdHigh), immInt(i32, 1<<14))
	h := ir.NewCall(i32, ir.OpHalvingAdd, s, bc)
	cross := ir.ShiftRight(h, immInt(i32, 14))

	ac := mulExpr(i32, a, c)
	inner := addExpr(i32, ac, cross)
	return ir.NewCall(i32, ir.OpSaturatingAdd, ac, inner)
}

// lowerAbsd promotes to the signed wide type so the subtraction can never
// overflow, takes the magnitude via max(v, -v) rather than the named abs
// call, and narrows back to the unsigned result width.
func lowerAbsd(t ir.Type, x, y *ir.Expr) *ir.Expr {
	wide := x.Type.Widen().WithCode(ir.Int)
	diff := subExpr(wide, cast(wide, x), cast(wide, y))
	neg := subExpr(wide, zeroOf(wide), diff)
	magnitude := maxE(wide, diff, neg)
	return cast(t, magnitude)
}

// lowerSortedAvg implements a + floor((b-a)/2) directly at the native
// width: callers guarantee b >= a, so b-a computed on the unsigned
// patterns is the exact non-negative spread even when it exceeds the
// signed range, its logical half fits, and the modular add-back lands on
// the in-range result.
func lowerSortedAvg(t ir.Type, a, b *ir.Expr) *ir.Expr {
	if t.Code == ir.Float {
		diff := subExpr(t, b, a)
		half := floatImm(t.WithLanes(1), 0.5)
		if t.Lanes > 1 {
			half = &ir.Expr{Type: t, Kind: ir.Broadcast{Value: half, Lanes: int(t.Lanes)}}
		}
		return addExpr(t, a, mul(t, diff, half))
	}
	ut := t.WithCode(ir.Uint)
	diff := subExpr(ut, reinterpret(ut, b), reinterpret(ut, a))
	half := ir.ShiftRight(diff, immInt(ut, 1))
	return addExpr(t, a, reinterpret(t, half))
}
