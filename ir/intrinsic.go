package ir

// IntrinsicOp names a recognized intrinsic Call. OpNone marks a Call that is
// not an intrinsic (an ordinary named function, e.g. a transcendental math
// call left for the emitter's intrinsic dispatch table).
type IntrinsicOp uint8

const (
	OpNone IntrinsicOp = iota

	OpWideningAdd
	OpWideningSub
	OpWideningMul

	OpWidenRightAdd
	OpWidenRightSub
	OpWidenRightMul

	OpWideningShiftLeft
	OpWideningShiftRight

	OpRoundingShiftLeft
	OpRoundingShiftRight

	OpSaturatingAdd
	OpSaturatingSub
	OpSaturatingCast

	OpHalvingAdd
	OpHalvingSub
	OpRoundingHalvingAdd

	OpMulShiftRight
	OpRoundingMulShiftRight

	OpAbsd
	OpSortedAvg
)

// arity holds the fixed argument count for every intrinsic. SaturatingCast
// takes one value argument (the destination type is the Call's own Type);
// the two MulShiftRight variants take three (x, y, shift amount q).
var arity = map[IntrinsicOp]int{
	OpWideningAdd:           2,
	OpWideningSub:           2,
	OpWideningMul:           2,
	OpWidenRightAdd:         2,
	OpWidenRightSub:         2,
	OpWidenRightMul:         2,
	OpWideningShiftLeft:     2,
	OpWideningShiftRight:    2,
	OpRoundingShiftLeft:     2,
	OpRoundingShiftRight:    2,
	OpSaturatingAdd:         2,
	OpSaturatingSub:         2,
	OpSaturatingCast:        1,
	OpHalvingAdd:            2,
	OpHalvingSub:            2,
	OpRoundingHalvingAdd:    2,
	OpMulShiftRight:         3,
	OpRoundingMulShiftRight: 3,
	OpAbsd:                  2,
	OpSortedAvg:             2,
}

// Arity returns op's fixed argument count, or -1 for OpNone / an unknown op.
func (op IntrinsicOp) Arity() int {
	if n, ok := arity[op]; ok {
		return n
	}
	return -1
}

var opNames = map[IntrinsicOp]string{
	OpNone:                  "none",
	OpWideningAdd:           "widening_add",
	OpWideningSub:           "widening_sub",
	OpWideningMul:           "widening_mul",
	OpWidenRightAdd:         "widen_right_add",
	OpWidenRightSub:         "widen_right_sub",
	OpWidenRightMul:         "widen_right_mul",
	OpWideningShiftLeft:     "widening_shift_left",
	OpWideningShiftRight:    "widening_shift_right",
	OpRoundingShiftLeft:     "rounding_shift_left",
	OpRoundingShiftRight:    "rounding_shift_right",
	OpSaturatingAdd:         "saturating_add",
	OpSaturatingSub:         "saturating_sub",
	OpSaturatingCast:        "saturating_cast",
	OpHalvingAdd:            "halving_add",
	OpHalvingSub:            "halving_sub",
	OpRoundingHalvingAdd:    "rounding_halving_add",
	OpMulShiftRight:         "mul_shift_right",
	OpRoundingMulShiftRight: "rounding_mul_shift_right",
	OpAbsd:                  "absd",
	OpSortedAvg:             "sorted_avg",
}

func (op IntrinsicOp) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown_intrinsic"
}

// NewCall builds a well-typed intrinsic Call expression, validating arity.
func NewCall(resultType Type, op IntrinsicOp, args ...*Expr) *Expr {
	if n := op.Arity(); n >= 0 && n != len(args) {
		panic("ir: NewCall: wrong arity for " + op.String())
	}
	return &Expr{Type: resultType, Kind: Call{Name: op.String(), Op: op, Args: args}}
}
