package ir

import "testing"

func imm(t Type, v int64) *Expr {
	if t.Code == Uint {
		return &Expr{Type: t, Kind: ImmUint{Value: uint64(v)}}
	}
	return &Expr{Type: t, Kind: ImmInt{Value: v}}
}

// TestSaturatingAddU8 pins the unsigned clamp at the top of the range.
func TestSaturatingAddU8(t *testing.T) {
	u8 := UintOf(8)
	call := NewCall(u8, OpSaturatingAdd, imm(u8, 200), imm(u8, 100))
	got := Eval(call, nil).Uint()
	if got != 255 {
		t.Fatalf("saturating_add(200,100) = %d, want 255", got)
	}
}

// TestSaturatingAddI8 pins the signed clamp at the top of the range.
func TestSaturatingAddI8(t *testing.T) {
	i8 := IntOf(8)
	call := NewCall(i8, OpSaturatingAdd, imm(i8, 120), imm(i8, 20))
	got := Eval(call, nil).Int()
	if got != 127 {
		t.Fatalf("saturating_add(120,20) = %d, want 127", got)
	}
}

// TestRoundingMulShiftRight pins the literal fixed-point multiply result.
func TestRoundingMulShiftRight(t *testing.T) {
	i16 := IntOf(16)
	call := NewCall(i16, OpRoundingMulShiftRight, imm(i16, 30000), imm(i16, 30000), imm(IntOf(32), 15))
	got := Eval(call, nil).Int()
	if got != 27466 {
		t.Fatalf("rounding_mul_shift_right(30000,30000,15) = %d, want 27466", got)
	}
}

func TestWideningAdd(t *testing.T) {
	i16 := IntOf(16)
	i32 := i16.Widen()
	call := NewCall(i32, OpWideningAdd, imm(i16, 30000), imm(i16, 30000))
	got := Eval(call, nil).Int()
	if got != 60000 {
		t.Fatalf("widening_add = %d, want 60000", got)
	}
}

func TestHalvingAdd(t *testing.T) {
	u8 := UintOf(8)
	call := NewCall(u8, OpHalvingAdd, imm(u8, 200), imm(u8, 101))
	if got := Eval(call, nil).Uint(); got != 150 {
		t.Fatalf("halving_add(200,101) = %d, want 150", got)
	}
}

func TestRoundingHalvingAdd(t *testing.T) {
	u8 := UintOf(8)
	call := NewCall(u8, OpRoundingHalvingAdd, imm(u8, 200), imm(u8, 101))
	if got := Eval(call, nil).Uint(); got != 151 {
		t.Fatalf("rounding_halving_add(200,101) = %d, want 151", got)
	}
}

func TestAbsd(t *testing.T) {
	u8 := UintOf(8)
	i8 := IntOf(8)
	call := NewCall(u8, OpAbsd, imm(i8, -100), imm(i8, 27))
	if got := Eval(call, nil).Uint(); got != 127 {
		t.Fatalf("absd(-100,27) = %d, want 127", got)
	}
}

func TestSortedAvg(t *testing.T) {
	u32 := UintOf(32)
	call := NewCall(u32, OpSortedAvg, imm(u32, 10), imm(u32, 21))
	if got := Eval(call, nil).Uint(); got != 15 {
		t.Fatalf("sorted_avg(10,21) = %d, want 15", got)
	}
}

func TestSaturatingCastClampsBothWays(t *testing.T) {
	u8 := UintOf(8)
	i32 := IntOf(32)
	hi := NewCall(u8, OpSaturatingCast, imm(i32, 9000))
	if got := Eval(hi, nil).Uint(); got != 255 {
		t.Fatalf("saturating_cast(u8, 9000) = %d, want 255", got)
	}
	lo := NewCall(u8, OpSaturatingCast, imm(i32, -5))
	if got := Eval(lo, nil).Uint(); got != 0 {
		t.Fatalf("saturating_cast(u8, -5) = %d, want 0", got)
	}
}

func TestMulShiftRightSaturates(t *testing.T) {
	i16 := IntOf(16)
	q := &Expr{Type: IntOf(32), Kind: ImmInt{Value: 1}}
	call := NewCall(i16, OpMulShiftRight, imm(i16, 32767), imm(i16, 32767), q)
	got := Eval(call, nil).Int()
	// (32767*32767) >> 1 = 536838144, far outside i16 range: clamps to max.
	if got != 32767 {
		t.Fatalf("mul_shift_right(32767,32767,1) = %d, want 32767 (saturated)", got)
	}
}

func TestMulShiftRightExact(t *testing.T) {
	i16 := IntOf(16)
	q := &Expr{Type: IntOf(32), Kind: ImmInt{Value: 15}}
	call := NewCall(i16, OpMulShiftRight, imm(i16, 300), imm(i16, 200), q)
	got := Eval(call, nil).Int()
	want := int64((300 * 200) >> 15)
	if got != want {
		t.Fatalf("mul_shift_right(300,200,15) = %d, want %d", got, want)
	}
}
