package intrin

import (
	"testing"

	"github.com/gogpu/tensorshade/ir"
)

// evalPair evaluates an intrinsic call and its Lower expansion under the
// same environment and requires the bit patterns to agree.
func evalPair(t *testing.T, call *ir.Expr, env ir.Env) {
	t.Helper()
	ref := ir.Eval(call, env)
	got := ir.Eval(Lower(call), env)
	if ref.Bits != got.Bits {
		c := call.Kind.(ir.Call)
		t.Fatalf("%s%v: lowered bits 0x%x, reference bits 0x%x (env %v)",
			c.Op, call.Type, got.Bits, ref.Bits, env)
	}
}

var i8Samples = []int64{-128, -127, -120, -100, -64, -7, -1, 0, 1, 2, 63, 100, 119, 120, 126, 127}
var u8Samples = []uint64{0, 1, 2, 5, 100, 127, 128, 200, 254, 255}

func TestLowerSaturatingAddSubExhaustive(t *testing.T) {
	i8 := ir.IntOf(8)
	u8 := ir.UintOf(8)
	x, y := &ir.Expr{Type: i8, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: i8, Kind: ir.Var{Name: "y"}}
	for a := int64(-128); a <= 127; a++ {
		for b := int64(-128); b <= 127; b++ {
			env := ir.Env{"x": ir.IntVal(i8, a), "y": ir.IntVal(i8, b)}
			evalPair(t, ir.NewCall(i8, ir.OpSaturatingAdd, x, y), env)
			evalPair(t, ir.NewCall(i8, ir.OpSaturatingSub, x, y), env)
		}
	}
	ux, uy := &ir.Expr{Type: u8, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: u8, Kind: ir.Var{Name: "y"}}
	for a := uint64(0); a <= 255; a++ {
		for b := uint64(0); b <= 255; b++ {
			env := ir.Env{"x": ir.UintVal(u8, a), "y": ir.UintVal(u8, b)}
			evalPair(t, ir.NewCall(u8, ir.OpSaturatingAdd, ux, uy), env)
			evalPair(t, ir.NewCall(u8, ir.OpSaturatingSub, ux, uy), env)
		}
	}
}

func TestLowerHalvingFamily(t *testing.T) {
	i8 := ir.IntOf(8)
	u8 := ir.UintOf(8)
	x, y := &ir.Expr{Type: i8, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: i8, Kind: ir.Var{Name: "y"}}
	for _, a := range i8Samples {
		for _, b := range i8Samples {
			env := ir.Env{"x": ir.IntVal(i8, a), "y": ir.IntVal(i8, b)}
			evalPair(t, ir.NewCall(i8, ir.OpHalvingAdd, x, y), env)
			evalPair(t, ir.NewCall(i8, ir.OpHalvingSub, x, y), env)
			evalPair(t, ir.NewCall(i8, ir.OpRoundingHalvingAdd, x, y), env)
		}
	}
	ux, uy := &ir.Expr{Type: u8, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: u8, Kind: ir.Var{Name: "y"}}
	for _, a := range u8Samples {
		for _, b := range u8Samples {
			env := ir.Env{"x": ir.UintVal(u8, a), "y": ir.UintVal(u8, b)}
			evalPair(t, ir.NewCall(u8, ir.OpHalvingAdd, ux, uy), env)
			evalPair(t, ir.NewCall(u8, ir.OpRoundingHalvingAdd, ux, uy), env)
		}
	}
}

func TestLowerRoundingShiftRight(t *testing.T) {
	i16 := ir.IntOf(16)
	u16 := ir.UintOf(16)
	samples := []int64{-32768, -32767, -12345, -256, -255, -2, -1, 0, 1, 2, 127, 128, 255, 12345, 32766, 32767}
	x := &ir.Expr{Type: i16, Kind: ir.Var{Name: "x"}}
	ux := &ir.Expr{Type: u16, Kind: ir.Var{Name: "x"}}
	for _, a := range samples {
		for shift := int64(1); shift <= 8; shift++ {
			q := &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: shift}}
			evalPair(t, ir.NewCall(i16, ir.OpRoundingShiftRight, x, q), ir.Env{"x": ir.IntVal(i16, a)})
			evalPair(t, ir.NewCall(u16, ir.OpRoundingShiftRight, ux, q), ir.Env{"x": ir.UintVal(u16, uint64(a))})
		}
	}
	// Negative amount reverses direction.
	negQ := &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: -3}}
	evalPair(t, ir.NewCall(i16, ir.OpRoundingShiftRight, x, negQ), ir.Env{"x": ir.IntVal(i16, 5)})
	evalPair(t, ir.NewCall(i16, ir.OpRoundingShiftLeft, x, &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 3}}), ir.Env{"x": ir.IntVal(i16, 5)})
}

func TestLowerAbsdAndSortedAvg(t *testing.T) {
	i8 := ir.IntOf(8)
	u8 := ir.UintOf(8)
	x, y := &ir.Expr{Type: i8, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: i8, Kind: ir.Var{Name: "y"}}
	for _, a := range i8Samples {
		for _, b := range i8Samples {
			env := ir.Env{"x": ir.IntVal(i8, a), "y": ir.IntVal(i8, b)}
			evalPair(t, ir.NewCall(u8, ir.OpAbsd, x, y), env)
			if a <= b {
				evalPair(t, ir.NewCall(i8, ir.OpSortedAvg, x, y), env)
			}
		}
	}
}

func TestLowerMulShiftRight(t *testing.T) {
	i16 := ir.IntOf(16)
	x, y := &ir.Expr{Type: i16, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: i16, Kind: ir.Var{Name: "y"}}
	samples := []int64{-32768, -30000, -256, -1, 0, 1, 200, 300, 30000, 32767}
	for _, a := range samples {
		for _, b := range samples {
			env := ir.Env{"x": ir.IntVal(i16, a), "y": ir.IntVal(i16, b)}
			for _, shift := range []int64{0, 1, 14, 15} {
				q := &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: shift}}
				evalPair(t, ir.NewCall(i16, ir.OpMulShiftRight, x, y, q), env)
				evalPair(t, ir.NewCall(i16, ir.OpRoundingMulShiftRight, x, y, q), env)
			}
		}
	}
}

// TestLowerRoundingMulShiftRight32By31 exercises the hand-unrolled 16x16
// partial-product path across the i32 corner cases: the
// saturating top end, exact halves, and mixed-sign splits.
func TestLowerRoundingMulShiftRight32By31(t *testing.T) {
	i32 := ir.IntOf(32)
	x, y := &ir.Expr{Type: i32, Kind: ir.Var{Name: "x"}}, &ir.Expr{Type: i32, Kind: ir.Var{Name: "y"}}
	q := &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 31}}
	samples := []int64{
		-2147483648, -2147483647, -2147418112, -1073741824, -65536, -32768,
		-65531, -3, -1, 0, 1, 3, 5, 32768, 65536, 65541, 1073741824,
		1073741825, 2147418112, 2147483646, 2147483647,
	}
	for _, a := range samples {
		for _, b := range samples {
			env := ir.Env{"x": ir.IntVal(i32, a), "y": ir.IntVal(i32, b)}
			evalPair(t, ir.NewCall(i32, ir.OpRoundingMulShiftRight, x, y, q), env)
		}
	}
}

func TestLowerSaturatingCast(t *testing.T) {
	i32 := ir.IntOf(32)
	u16 := ir.UintOf(16)
	x := &ir.Expr{Type: i32, Kind: ir.Var{Name: "x"}}
	ux := &ir.Expr{Type: u16, Kind: ir.Var{Name: "x"}}
	for _, a := range []int64{-2147483648, -70000, -129, -128, -1, 0, 1, 127, 128, 255, 256, 65535, 65536, 2147483647} {
		env := ir.Env{"x": ir.IntVal(i32, a)}
		evalPair(t, ir.NewCall(ir.IntOf(8), ir.OpSaturatingCast, x), env)
		evalPair(t, ir.NewCall(ir.UintOf(8), ir.OpSaturatingCast, x), env)
		evalPair(t, ir.NewCall(ir.UintOf(32), ir.OpSaturatingCast, x), env)
	}
	for _, a := range []uint64{0, 1, 127, 128, 255, 256, 32767, 32768, 65535} {
		env := ir.Env{"x": ir.UintVal(u16, a)}
		evalPair(t, ir.NewCall(ir.IntOf(8), ir.OpSaturatingCast, ux), env)
		evalPair(t, ir.NewCall(ir.IntOf(16), ir.OpSaturatingCast, ux), env)
	}
}
