package intrin

import (
	"testing"

	"github.com/gogpu/tensorshade/ir"
)

func v(name string, t ir.Type) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Var{Name: name}} }

// TestRecognizeWideningAdd: two vectors cast up
// from i16x4 and added in i32x4 should lift to cast(widening_add(a,b)).
func TestRecognizeWideningAdd(t *testing.T) {
	narrow := ir.IntOf(16).WithLanes(4)
	wide := ir.IntOf(32).WithLanes(4)
	a, b := v("a", narrow), v("b", narrow)
	expr := addExpr(wide, cast(wide, a), cast(wide, b))

	got := Recognize(expr, Options{})
	call, ok := ir.AsIntrinsic(got, ir.OpWideningAdd)
	if !ok {
		t.Fatalf("expected widening_add, got %#v", got.Kind)
	}
	if call.Args[0] != a || call.Args[1] != b {
		t.Fatalf("widening_add did not capture original narrow operands")
	}
}

func TestRecognizeWidenRightAdd(t *testing.T) {
	narrow := ir.UintOf(16).WithLanes(4)
	wide := ir.UintOf(32).WithLanes(4)
	x := v("x", wide)
	y := v("y", narrow)
	expr := addExpr(wide, x, cast(wide, y))

	got := Recognize(expr, Options{})
	call, ok := ir.AsIntrinsic(got, ir.OpWidenRightAdd)
	if !ok {
		t.Fatalf("expected widen_right_add, got %#v", got.Kind)
	}
	if call.Args[0] != x || call.Args[1] != y {
		t.Fatalf("widen_right_add did not capture original operands")
	}
}

func TestRecognizeHalvingAdd(t *testing.T) {
	narrow := ir.UintOf(8).WithLanes(8)
	wide := ir.UintOf(16).WithLanes(8)
	x, y := v("x", narrow), v("y", narrow)
	wadd := ir.NewCall(wide, ir.OpWideningAdd, x, y)
	shiftExpr := ir.ShiftRight(wadd, &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 1}})
	shiftExpr.Type = narrow

	got := Recognize(shiftExpr, Options{})
	call, ok := ir.AsIntrinsic(got, ir.OpHalvingAdd)
	if !ok {
		t.Fatalf("expected halving_add, got %#v", got.Kind)
	}
	if call.Args[0] != x || call.Args[1] != y {
		t.Fatalf("halving_add did not capture original operands")
	}
}

func TestRecognizeAbsd(t *testing.T) {
	narrow := ir.IntOf(16).WithLanes(4)
	wide := ir.IntOf(32).WithLanes(4)
	x, y := v("x", narrow), v("y", narrow)
	wsub := ir.NewCall(wide, ir.OpWideningSub, x, y)
	absExpr := ir.Abs(wide, wsub)
	outer := cast(narrow.WithCode(ir.Uint), absExpr)

	got := Recognize(outer, Options{})
	outerCast, ok := got.Kind.(ir.Cast)
	if !ok {
		t.Fatalf("expected outer Cast, got %T", got.Kind)
	}
	call, ok := ir.AsIntrinsic(outerCast.X, ir.OpAbsd)
	if !ok {
		t.Fatalf("expected absd, got %#v", outerCast.X.Kind)
	}
	if call.Args[0] != x || call.Args[1] != y {
		t.Fatalf("absd did not capture original operands")
	}
}

func TestRecognizeDisabled(t *testing.T) {
	narrow := ir.IntOf(16).WithLanes(4)
	wide := ir.IntOf(32).WithLanes(4)
	a, b := v("a", narrow), v("b", narrow)
	expr := addExpr(wide, cast(wide, a), cast(wide, b))

	got := Recognize(expr, Options{DisableIntrinsics: true})
	if got != expr {
		t.Fatalf("DisableIntrinsics must return the input unchanged")
	}
}

// TestRecognizeRoundingHalvingAdd:
// shift_right(widening_add(x,y)+1, 1) over u8x8 lifts to
// rounding_halving_add(x, y).
func TestRecognizeRoundingHalvingAdd(t *testing.T) {
	narrow := ir.UintOf(8).WithLanes(8)
	wide := ir.UintOf(16).WithLanes(8)
	x, y := v("x", narrow), v("y", narrow)
	wadd := ir.NewCall(wide, ir.OpWideningAdd, x, y)
	sum := addExpr(wide, wadd, &ir.Expr{Type: wide, Kind: ir.ImmInt{Value: 1}})
	shiftExpr := ir.ShiftRight(sum, &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 1}})
	shiftExpr.Type = narrow

	got := Recognize(shiftExpr, Options{})
	call, ok := ir.AsIntrinsic(got, ir.OpRoundingHalvingAdd)
	if !ok {
		t.Fatalf("expected rounding_halving_add, got %#v", got.Kind)
	}
	if call.Args[0] != x || call.Args[1] != y {
		t.Fatalf("rounding_halving_add did not capture original operands")
	}
}

// TestRecognizeSaturatingAdd drives the saturating family from the
// longhand clamp form: cast(u8, min(widening_add(x,y), 255)).
func TestRecognizeSaturatingAdd(t *testing.T) {
	narrow := ir.UintOf(8).WithLanes(8)
	wide := ir.UintOf(16).WithLanes(8)
	x, y := v("x", narrow), v("y", narrow)
	wadd := ir.NewCall(wide, ir.OpWideningAdd, x, y)
	clamped := &ir.Expr{Type: wide, Kind: ir.Min{X: wadd, Y: &ir.Expr{Type: wide, Kind: ir.ImmInt{Value: 255}}}}
	expr := cast(narrow, clamped)

	got := Recognize(expr, Options{})
	call, ok := ir.AsIntrinsic(got, ir.OpSaturatingAdd)
	if !ok {
		t.Fatalf("expected saturating_add, got %#v", got.Kind)
	}
	if call.Args[0] != x || call.Args[1] != y {
		t.Fatalf("saturating_add did not capture original operands")
	}
}

// TestRecognizeAcrossLetBinding checks the binder pre-substitution: a pure
// widening value bound by a Let is inlined into the body so the widening
// pattern can fuse across the binder.
func TestRecognizeAcrossLetBinding(t *testing.T) {
	narrow := ir.IntOf(16).WithLanes(4)
	wide := ir.IntOf(32).WithLanes(4)
	a, b := v("a", narrow), v("b", narrow)
	body := addExpr(wide, v("wa", wide), cast(wide, b))
	let := &ir.Expr{Type: wide, Kind: ir.Let{Name: "wa", Value: cast(wide, a), Body: body}}

	got := Recognize(let, Options{})
	letOut, ok := got.Kind.(ir.Let)
	if !ok {
		t.Fatalf("expected Let at root, got %T", got.Kind)
	}
	if _, ok := ir.AsIntrinsic(letOut.Body, ir.OpWideningAdd); !ok {
		t.Fatalf("expected widening_add across the binder, got %#v", letOut.Body.Kind)
	}
}

// TestLowerRecognizeRoundTrip:
// recognizing LowerSemantic's output must reconstruct the original
// intrinsic op (possibly under a lossless outer cast).
func TestLowerRecognizeRoundTrip(t *testing.T) {
	i16x4 := ir.IntOf(16).WithLanes(4)
	i32x4 := ir.IntOf(32).WithLanes(4)
	u8x8 := ir.UintOf(8).WithLanes(8)
	xi, yi := v("x", i16x4), v("y", i16x4)
	xu, yu := v("x", u8x8), v("y", u8x8)
	q := func(val int64) *ir.Expr { return &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: val}} }

	cases := []*ir.Expr{
		ir.NewCall(i32x4, ir.OpWideningAdd, xi, yi),
		ir.NewCall(i32x4, ir.OpWideningSub, xi, yi),
		ir.NewCall(i32x4, ir.OpWideningMul, xi, yi),
		ir.NewCall(i32x4, ir.OpWidenRightAdd, v("w", i32x4), yi),
		ir.NewCall(i32x4, ir.OpWideningShiftLeft, xi, q(3)),
		ir.NewCall(i32x4, ir.OpWideningShiftRight, xi, q(3)),
		ir.NewCall(i16x4, ir.OpRoundingShiftRight, xi, q(4)),
		ir.NewCall(i16x4, ir.OpSaturatingAdd, xi, yi),
		ir.NewCall(u8x8, ir.OpSaturatingAdd, xu, yu),
		ir.NewCall(u8x8, ir.OpSaturatingSub, xu, yu),
		ir.NewCall(i16x4, ir.OpSaturatingCast, v("w", i32x4)),
		ir.NewCall(u8x8, ir.OpHalvingAdd, xu, yu),
		ir.NewCall(i16x4, ir.OpHalvingSub, xi, yi),
		ir.NewCall(u8x8, ir.OpRoundingHalvingAdd, xu, yu),
		ir.NewCall(i16x4, ir.OpMulShiftRight, xi, yi, q(14)),
		ir.NewCall(i16x4, ir.OpRoundingMulShiftRight, xi, yi, q(15)),
		ir.NewCall(u8x8, ir.OpAbsd, xu, yu),
		ir.NewCall(i16x4.WithCode(ir.Uint), ir.OpAbsd, xi, yi),
		ir.NewCall(u8x8, ir.OpSortedAvg, xu, yu),
	}
	for _, orig := range cases {
		origCall := orig.Kind.(ir.Call)
		lowered := LowerSemantic(orig)
		got := Recognize(lowered, Options{})
		call, ok := got.Kind.(ir.Call)
		if !ok {
			if c, ok2 := asCast(got); ok2 {
				call, ok = c.Kind.(ir.Call)
			}
		}
		if !ok {
			t.Fatalf("round trip for %v did not reconstruct a Call, got %#v", origCall.Op, got.Kind)
		}
		if call.Op != origCall.Op {
			t.Fatalf("round trip for %v: got op %v", origCall.Op, call.Op)
		}
	}
}

func TestGPUBuiltinSuffix(t *testing.T) {
	b, ok, err := RecognizeGPUBuiltin("pixel__thread_id_x")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if b.Kind != ThreadID || b.Dim != DimX {
		t.Fatalf("unexpected builtin %#v", b)
	}
	if _, ok, _ := RecognizeGPUBuiltin("plain_var"); ok {
		t.Fatalf("plain_var should not match")
	}
	if _, _, err := RecognizeGPUBuiltin("__bogus_suffix"); err == nil {
		t.Fatalf("expected error for unrecognized __-prefixed name")
	}
}
