package ir

import "testing"

func TestTypeWidenNarrow(t *testing.T) {
	u8 := UintOf(8)
	u16 := u8.Widen()
	if u16.Bits != 16 || u16.Code != Uint {
		t.Fatalf("Widen: got %v", u16)
	}
	back := u16.Narrow()
	if !back.Equal(u8) {
		t.Fatalf("Narrow: got %v, want %v", back, u8)
	}
}

func TestTypeBytes(t *testing.T) {
	cases := []struct {
		t    Type
		want int
	}{
		{UintOf(8), 1},
		{IntOf(32), 4},
		{Type{Code: Bool, Bits: 1, Lanes: 1}, 1},
		{UintOf(8).WithLanes(4), 4},
		{IntOf(16).WithLanes(8), 16},
	}
	for _, c := range cases {
		if got := c.t.Bytes(); got != c.want {
			t.Errorf("%v.Bytes() = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestTypeMinMaxInt(t *testing.T) {
	i8 := IntOf(8)
	if i8.MinInt() != -128 || i8.MaxInt() != 127 {
		t.Fatalf("i8 bounds: [%d, %d]", i8.MinInt(), i8.MaxInt())
	}
	u8 := UintOf(8)
	if u8.MinInt() != 0 || u8.MaxInt() != 255 {
		t.Fatalf("u8 bounds: [%d, %d]", u8.MinInt(), u8.MaxInt())
	}
}

func TestTypeString(t *testing.T) {
	if got := UintOf(8).WithLanes(4).String(); got != "uint8x4" {
		t.Errorf("String() = %q", got)
	}
	if got := IntOf(32).String(); got != "int32" {
		t.Errorf("String() = %q", got)
	}
}
