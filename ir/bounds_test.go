package ir

import (
	"math/big"
	"testing"
)

func TestBoundsAddConst(t *testing.T) {
	i32 := IntOf(32)
	x := &Expr{Type: i32, Kind: Var{Name: "x"}}
	scope := Scope{"x": {Min: big.NewInt(0), Max: big.NewInt(10)}}
	e := &Expr{Type: i32, Kind: Add{X: x, Y: imm(i32, 5)}}

	c := NewBoundsCache()
	iv := c.Bounds(e, scope)
	if iv.Min.Int64() != 5 || iv.Max.Int64() != 15 {
		t.Fatalf("bounds = [%v, %v], want [5, 15]", iv.Min, iv.Max)
	}
}

func TestUpperBoundedProvesSaturatingPattern(t *testing.T) {
	u8 := UintOf(8)
	x := &Expr{Type: u8, Kind: Var{Name: "x"}}
	scope := Scope{"x": Full(u8)}
	c := NewBoundsCache()
	if !c.UpperBounded(x, scope, big.NewInt(255)) {
		t.Fatal("expected x: u8 to be upper-bounded by 255")
	}
	if c.UpperBounded(x, scope, big.NewInt(100)) {
		t.Fatal("x: u8 should not be provably <= 100")
	}
}

func TestCanProveLE(t *testing.T) {
	i32 := IntOf(32)
	a := &Expr{Type: i32, Kind: Var{Name: "a"}}
	b := &Expr{Type: i32, Kind: Var{Name: "b"}}
	scope := Scope{
		"a": {Max: big.NewInt(5)},
		"b": {Min: big.NewInt(5)},
	}
	cond := &Expr{Type: BoolType(), Kind: LE{X: a, Y: b}}
	c := NewBoundsCache()
	if !c.CanProve(cond, scope) {
		t.Fatal("expected a <= b to be provable")
	}
}
