package intrin

import "github.com/gogpu/tensorshade/ir"

// recognizer holds the state threaded through one Recognize call: a bounds
// cache (so a pattern predicate like the rounding-shift headroom check
// never re-walks a subtree it has already measured) and the run's Options.
type recognizer struct {
	bounds *ir.BoundsCache
	opts   Options
}

// maxRulePasses bounds how many times the rule list is retried against a
// single node after a match, so a pattern that makes no further progress
// can't spin forever; every rule in rules.go is structured to stop
// matching its own output, so in practice this never gets close.
const maxRulePasses = 8

// Recognize rewrites e bottom-up, lifting arithmetic idioms into
// named ir.IntrinsicOp calls. With opts.DisableIntrinsics it returns e
// unchanged (HL_DISABLE_INTRINISICS).
func Recognize(e *ir.Expr, opts Options) *ir.Expr {
	if opts.DisableIntrinsics || e == nil {
		return e
	}
	rc := &recognizer{bounds: ir.NewBoundsCache(), opts: opts}
	return rc.rewrite(e, ir.Scope{})
}

func (rc *recognizer) rewrite(e *ir.Expr, scope ir.Scope) *ir.Expr {
	if e == nil {
		return nil
	}
	e = rc.rewriteChildren(e, scope)
	if !qualifies(e.Type) {
		return e
	}
	for pass := 0; pass < maxRulePasses; pass++ {
		matched := false
		for _, r := range rules {
			out, ok := r(rc, e, scope)
			if !ok {
				continue
			}
			if err := ir.AssertSameType("recognize", e, out); err != nil {
				continue
			}
			e = out
			matched = true
			break
		}
		if !matched {
			break
		}
	}
	return e
}

// rewriteChildren rebuilds e with every operand passed back through
// rewrite, threading Let-bound intervals into scope the way the bounds
// cache itself does: predicates are driven off a shallow copy of the
// ambient let-scope.
func (rc *recognizer) rewriteChildren(e *ir.Expr, scope ir.Scope) *ir.Expr {
	switch k := e.Kind.(type) {
	case ir.ImmInt, ir.ImmUint, ir.ImmFloat, ir.ImmStr, ir.ImmBool, ir.Var:
		return e
	case ir.Cast:
		return &ir.Expr{Type: e.Type, Kind: ir.Cast{X: rc.rewrite(k.X, scope)}}
	case ir.Reinterpret:
		return &ir.Expr{Type: e.Type, Kind: ir.Reinterpret{X: rc.rewrite(k.X, scope)}}
	case ir.Add:
		return &ir.Expr{Type: e.Type, Kind: ir.Add{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Sub:
		return &ir.Expr{Type: e.Type, Kind: ir.Sub{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Mul:
		return &ir.Expr{Type: e.Type, Kind: ir.Mul{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Div:
		return &ir.Expr{Type: e.Type, Kind: ir.Div{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Mod:
		return &ir.Expr{Type: e.Type, Kind: ir.Mod{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Min:
		return &ir.Expr{Type: e.Type, Kind: ir.Min{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Max:
		return &ir.Expr{Type: e.Type, Kind: ir.Max{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.EQ:
		return &ir.Expr{Type: e.Type, Kind: ir.EQ{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.NE:
		return &ir.Expr{Type: e.Type, Kind: ir.NE{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.LT:
		return &ir.Expr{Type: e.Type, Kind: ir.LT{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.LE:
		return &ir.Expr{Type: e.Type, Kind: ir.LE{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.GT:
		return &ir.Expr{Type: e.Type, Kind: ir.GT{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.GE:
		return &ir.Expr{Type: e.Type, Kind: ir.GE{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.And:
		return &ir.Expr{Type: e.Type, Kind: ir.And{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Or:
		return &ir.Expr{Type: e.Type, Kind: ir.Or{X: rc.rewrite(k.X, scope), Y: rc.rewrite(k.Y, scope)}}
	case ir.Not:
		return &ir.Expr{Type: e.Type, Kind: ir.Not{X: rc.rewrite(k.X, scope)}}
	case ir.Select:
		return &ir.Expr{Type: e.Type, Kind: ir.Select{
			Cond: rc.rewrite(k.Cond, scope),
			T:    rc.rewrite(k.T, scope),
			F:    rc.rewrite(k.F, scope),
		}}
	case ir.Load:
		return &ir.Expr{Type: e.Type, Kind: ir.Load{
			Name:      k.Name,
			Index:     rc.rewrite(k.Index, scope),
			Predicate: rc.rewrite(k.Predicate, scope),
		}}
	case ir.Ramp:
		return &ir.Expr{Type: e.Type, Kind: ir.Ramp{Base: rc.rewrite(k.Base, scope), Stride: rc.rewrite(k.Stride, scope), Lanes: k.Lanes}}
	case ir.Broadcast:
		return &ir.Expr{Type: e.Type, Kind: ir.Broadcast{Value: rc.rewrite(k.Value, scope), Lanes: k.Lanes}}
	case ir.Shuffle:
		vecs := make([]*ir.Expr, len(k.Vectors))
		for i, v := range k.Vectors {
			vecs[i] = rc.rewrite(v, scope)
		}
		return &ir.Expr{Type: e.Type, Kind: ir.Shuffle{Vectors: vecs, Indices: k.Indices}}
	case ir.Call:
		args := make([]*ir.Expr, len(k.Args))
		for i, a := range k.Args {
			args[i] = rc.rewrite(a, scope)
		}
		return &ir.Expr{Type: e.Type, Kind: ir.Call{Name: k.Name, Op: k.Op, Args: args}}
	case ir.Let:
		value := rc.rewrite(k.Value, scope)
		body := k.Body
		// Substitute a pure widening binding into its body before
		// rewriting it, so patterns reach across the binder; impure
		// values stay behind as bindings.
		if isWideningValue(value) && isPure(value) {
			body = substituteVar(body, k.Name, value)
		}
		inner := ir.Scope{}
		for n, v := range scope {
			inner[n] = v
		}
		inner[k.Name] = rc.bounds.Bounds(value, scope)
		body = rc.rewrite(body, inner)
		return &ir.Expr{Type: e.Type, Kind: ir.Let{Name: k.Name, Value: value, Body: body}}
	default:
		panic("intrin: rewriteChildren: unhandled ExprKind")
	}
}

// isWideningValue reports whether e's root widens a narrower input: an
// explicit widening Cast, or a widening intrinsic produced by an earlier
// rewrite of the binding's own value.
func isWideningValue(e *ir.Expr) bool {
	switch k := e.Kind.(type) {
	case ir.Cast:
		return (e.Type.Code == ir.Int || e.Type.Code == ir.Uint) && e.Type.Bits > k.X.Type.Bits
	case ir.Call:
		switch k.Op {
		case ir.OpWideningAdd, ir.OpWideningSub, ir.OpWideningMul,
			ir.OpWideningShiftLeft, ir.OpWideningShiftRight:
			return true
		}
	}
	return false
}

// isPure reports whether duplicating e at each use site is safe and cheap
// enough: memory reads and opaque named calls disqualify a binding from
// substitution and stay behind as bindings.
func isPure(e *ir.Expr) bool {
	switch k := e.Kind.(type) {
	case ir.Load:
		return false
	case ir.Call:
		if k.Op == ir.OpNone {
			switch k.Name {
			case "shift_right", "shift_left", "abs":
			default:
				return false
			}
		}
	}
	for _, c := range e.Children() {
		if !isPure(c) {
			return false
		}
	}
	return true
}

// substituteVar replaces free occurrences of name in e with a deep copy of
// value, stopping at any inner Let that rebinds the same name.
func substituteVar(e *ir.Expr, name string, value *ir.Expr) *ir.Expr {
	if e == nil {
		return nil
	}
	switch k := e.Kind.(type) {
	case ir.Var:
		if k.Name == name {
			return value.Clone()
		}
		return e
	case ir.Let:
		if k.Name == name {
			// The inner binding shadows ours; only the bound value sees it.
			return &ir.Expr{Type: e.Type, Kind: ir.Let{
				Name:  k.Name,
				Value: substituteVar(k.Value, name, value),
				Body:  k.Body,
			}}
		}
	}
	out := e.Clone()
	for _, c := range out.Children() {
		*c = *substituteVar(c, name, value)
	}
	return out
}
