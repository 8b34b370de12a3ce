package ir

import "math/big"

// evalIntrinsic computes the exact reference semantics of an intrinsic
// Call, used as ground truth by both the lowerer's and the
// recognizer's round-trip tests. All integer arithmetic is carried out in
// math/big so that no step here can itself overflow and corrupt the
// "bit-exact" comparison the tests are checking.
func evalIntrinsic(t Type, c Call, env Env) Value {
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = Eval(a, env)
	}

	switch c.Op {
	case OpWideningAdd, OpWidenRightAdd:
		return fromBig(t, new(big.Int).Add(toBig(args[0]), toBig(args[1])))
	case OpWideningSub, OpWidenRightSub:
		return fromBig(t, new(big.Int).Sub(toBig(args[0]), toBig(args[1])))
	case OpWideningMul, OpWidenRightMul:
		return fromBig(t, new(big.Int).Mul(toBig(args[0]), toBig(args[1])))

	case OpWideningShiftLeft:
		shift := args[1].Int()
		return fromBig(t, new(big.Int).Lsh(toBig(args[0]), uint(shift)))
	case OpWideningShiftRight:
		shift := args[1].Int()
		return fromBig(t, arithShift(toBig(args[0]), shift))

	case OpRoundingShiftLeft:
		y := args[1].Int()
		if y >= 0 {
			return fromBig(t, new(big.Int).Lsh(toBig(args[0]), uint(y)))
		}
		return fromBig(t, roundingShiftRightBig(toBig(args[0]), -y))
	case OpRoundingShiftRight:
		y := args[1].Int()
		if y <= 0 {
			return fromBig(t, new(big.Int).Lsh(toBig(args[0]), uint(-y)))
		}
		return fromBig(t, roundingShiftRightBig(toBig(args[0]), y))

	case OpSaturatingAdd:
		sum := new(big.Int).Add(toBig(args[0]), toBig(args[1]))
		return fromBig(t, clampBig(t, sum))
	case OpSaturatingSub:
		diff := new(big.Int).Sub(toBig(args[0]), toBig(args[1]))
		return fromBig(t, clampBig(t, diff))
	case OpSaturatingCast:
		return evalSaturatingCast(t, args[0])

	case OpHalvingAdd:
		sum := new(big.Int).Add(toBig(args[0]), toBig(args[1]))
		return fromBig(t, floorDiv2(sum))
	case OpHalvingSub:
		diff := new(big.Int).Sub(toBig(args[0]), toBig(args[1]))
		return fromBig(t, floorDiv2(diff))
	case OpRoundingHalvingAdd:
		sum := new(big.Int).Add(new(big.Int).Add(toBig(args[0]), toBig(args[1])), big.NewInt(1))
		return fromBig(t, floorDiv2(sum))

	case OpMulShiftRight:
		wide := new(big.Int).Mul(toBig(args[0]), toBig(args[1]))
		q := args[2].Int()
		shifted := arithShift(wide, q)
		return fromBig(t, clampBig(t, shifted))
	case OpRoundingMulShiftRight:
		wide := new(big.Int).Mul(toBig(args[0]), toBig(args[1]))
		q := args[2].Int()
		if q > 0 {
			half := new(big.Int).Lsh(big.NewInt(1), uint(q-1))
			wide.Add(wide, half)
		}
		shifted := arithShift(wide, q)
		return fromBig(t, clampBig(t, shifted))

	case OpAbsd:
		diff := new(big.Int).Sub(toBig(args[0]), toBig(args[1]))
		return fromBig(t, diff.Abs(diff))
	case OpSortedAvg:
		a, b := toBig(args[0]), toBig(args[1])
		half := floorDiv2(new(big.Int).Sub(b, a))
		return fromBig(t, new(big.Int).Add(a, half))

	default:
		panic("ir: evalIntrinsic: unhandled op " + c.Op.String())
	}
}

func toBig(v Value) *big.Int {
	if v.Type.Code == Uint {
		return new(big.Int).SetUint64(v.Uint())
	}
	return big.NewInt(v.Int())
}

// fromBig truncates b to t's bit width using the two's-complement pattern
// that masking onto a non-negative residue naturally produces.
func fromBig(t Type, b *big.Int) Value {
	if t.Bits == 0 {
		return Value{Type: t}
	}
	mod := new(big.Int).Mod(b, new(big.Int).Lsh(big.NewInt(1), uint(t.Bits)))
	return Value{Type: t, Bits: mod.Uint64()}
}

// arithShift performs a signed (floor) shift: positive n shifts right,
// negative n shifts left.
func arithShift(x *big.Int, n int64) *big.Int {
	if n >= 0 {
		return new(big.Int).Rsh(x, uint(n))
	}
	return new(big.Int).Lsh(x, uint(-n))
}

func roundingShiftRightBig(x *big.Int, y int64) *big.Int {
	if y <= 0 {
		return new(big.Int).Lsh(x, uint(-y))
	}
	half := new(big.Int).Lsh(big.NewInt(1), uint(y-1))
	sum := new(big.Int).Add(x, half)
	return new(big.Int).Rsh(sum, uint(y))
}

func floorDiv2(x *big.Int) *big.Int {
	return new(big.Int).Rsh(x, 1)
}

func clampBig(t Type, x *big.Int) *big.Int {
	lo := big.NewInt(t.MinInt())
	hi := new(big.Int).SetUint64(t.MaxInt())
	if x.Cmp(lo) < 0 {
		return lo
	}
	if x.Cmp(hi) > 0 {
		return hi
	}
	return x
}

// evalNamedCall evaluates the small set of ordinary (non-intrinsic) calls
// the recognizer's patterns look for: shift_right, shift_left, and abs.
func evalNamedCall(t Type, c Call, env Env) Value {
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = Eval(a, env)
	}
	switch c.Name {
	case "shift_right":
		return fromBig(t, arithShift(toBig(args[0]), args[1].Int()))
	case "shift_left":
		return fromBig(t, arithShift(toBig(args[0]), -args[1].Int()))
	case "abs":
		return fromBig(t, new(big.Int).Abs(toBig(args[0])))
	default:
		panic("ir: evalNamedCall: unsupported call " + c.Name)
	}
}

func evalSaturatingCast(t Type, src Value) Value {
	if t.Code == Float {
		return FloatVal(t, src.Float())
	}
	if src.Type.Code == Float {
		f := src.F
		loF, hiF := float64(t.MinInt()), float64(t.MaxInt())
		if t.Code == Uint && t.Bits == 64 {
			hiF = 18446744073709551615.0
		}
		switch {
		case f != f: // NaN
			return fromBig(t, big.NewInt(0))
		case f <= loF:
			return fromBig(t, big.NewInt(t.MinInt()))
		case f >= hiF:
			return fromBig(t, new(big.Int).SetUint64(t.MaxInt()))
		default:
			return fromBig(t, big.NewInt(int64(f)))
		}
	}
	return fromBig(t, clampBig(t, toBig(src)))
}
