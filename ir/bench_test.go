package ir

import "testing"

func benchTree(depth int) *Expr {
	t := IntOf(32)
	e := imm(t, 1)
	for i := 0; i < depth; i++ {
		e = &Expr{Type: t, Kind: Add{X: e, Y: imm(t, int64(i))}}
	}
	return e
}

func BenchmarkEval(b *testing.B) {
	e := benchTree(64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Eval(e, nil)
	}
}

func BenchmarkBoundsCached(b *testing.B) {
	e := benchTree(64)
	c := NewBoundsCache()
	c.Bounds(e, Scope{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Bounds(e, Scope{})
	}
}
