package intrin

import "github.com/gogpu/tensorshade/ir"

// qualifies reports whether t is the kind of expression the recognizer
// attempts to rewrite: a vector whose element width is >= 8 bits. Scalar
// and boolean expressions pass through unchanged.
func qualifies(t ir.Type) bool {
	return t.Lanes > 1 && t.Bits >= 8 && t.Code != ir.Bool && t.Code != ir.HandleCode
}

func asCast(e *ir.Expr) (*ir.Expr, bool) {
	c, ok := e.Kind.(ir.Cast)
	if !ok {
		return nil, false
	}
	return c.X, true
}

func asReinterpret(e *ir.Expr) (*ir.Expr, bool) {
	r, ok := e.Kind.(ir.Reinterpret)
	if !ok {
		return nil, false
	}
	return r.X, true
}

func isConstLeaf(e *ir.Expr) bool {
	switch e.Kind.(type) {
	case ir.ImmInt, ir.ImmUint:
		return true
	default:
		return false
	}
}

// constValue matches an integer immediate, looking through one Broadcast:
// the c0/c1 wildcards of the rule language bind a vector-splat constant the
// same way they bind a scalar one.
func constValue(e *ir.Expr) (int64, bool) {
	if b, ok := e.Kind.(ir.Broadcast); ok {
		return ir.AsInt64(b.Value)
	}
	return ir.AsInt64(e)
}

// isConstExpr reports whether e is an integer immediate or a Broadcast of
// one.
func isConstExpr(e *ir.Expr) bool {
	_, ok := constValue(e)
	return ok
}

// sameExpr is the matcher's structural-equality test for a wildcard bound
// twice on one left-hand side (the `a ... a` in sorted_avg's pattern).
func sameExpr(a, b *ir.Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || !a.Type.Equal(b.Type) {
		return false
	}
	switch ka := a.Kind.(type) {
	case ir.Var:
		kb, ok := b.Kind.(ir.Var)
		return ok && ka.Name == kb.Name
	case ir.ImmInt:
		kb, ok := b.Kind.(ir.ImmInt)
		return ok && ka.Value == kb.Value
	case ir.ImmUint:
		kb, ok := b.Kind.(ir.ImmUint)
		return ok && ka.Value == kb.Value
	case ir.ImmFloat:
		kb, ok := b.Kind.(ir.ImmFloat)
		return ok && ka.Value == kb.Value
	case ir.Load:
		kb, ok := b.Kind.(ir.Load)
		if !ok || ka.Name != kb.Name {
			return false
		}
		return sameExpr(ka.Index, kb.Index) && sameExpr(ka.Predicate, kb.Predicate)
	}
	ca, cb := a.Children(), b.Children()
	if len(ca) != len(cb) || !sameKind(a.Kind, b.Kind) {
		return false
	}
	for i := range ca {
		if !sameExpr(ca[i], cb[i]) {
			return false
		}
	}
	return true
}

func sameKind(a, b ir.ExprKind) bool {
	switch ka := a.(type) {
	case ir.Cast:
		_, ok := b.(ir.Cast)
		return ok
	case ir.Reinterpret:
		_, ok := b.(ir.Reinterpret)
		return ok
	case ir.Add:
		_, ok := b.(ir.Add)
		return ok
	case ir.Sub:
		_, ok := b.(ir.Sub)
		return ok
	case ir.Mul:
		_, ok := b.(ir.Mul)
		return ok
	case ir.Call:
		kb, ok := b.(ir.Call)
		return ok && ka.Op == kb.Op && ka.Name == kb.Name
	default:
		return false
	}
}

// stripReinterpret looks through a bit-pattern reinterpretation, used when a
// sign-flexible widening match wrapped its intrinsic in one.
func stripReinterpret(e *ir.Expr) *ir.Expr {
	if r, ok := e.Kind.(ir.Reinterpret); ok {
		return r.X
	}
	return e
}

// canRepresent reports whether every value of type inner fits losslessly
// into type outer (same lane count, wide enough, and compatible sign).
func canRepresent(outer, inner ir.Type) bool {
	if outer.Lanes != inner.Lanes {
		return false
	}
	switch inner.Code {
	case ir.Uint:
		switch outer.Code {
		case ir.Uint:
			return outer.Bits >= inner.Bits
		case ir.Int:
			return outer.Bits > inner.Bits
		default:
			return false
		}
	case ir.Int:
		if outer.Code == ir.Int {
			return outer.Bits >= inner.Bits
		}
		return false
	default:
		return false
	}
}

func cast(t ir.Type, x *ir.Expr) *ir.Expr {
	return &ir.Expr{Type: t, Kind: ir.Cast{X: x}}
}

func reinterpret(t ir.Type, x *ir.Expr) *ir.Expr {
	return &ir.Expr{Type: t, Kind: ir.Reinterpret{X: x}}
}

func addExpr(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Add{X: x, Y: y}} }
func subExpr(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Sub{X: x, Y: y}} }
func mulExpr(t ir.Type, x, y *ir.Expr) *ir.Expr { return &ir.Expr{Type: t, Kind: ir.Mul{X: x, Y: y}} }
