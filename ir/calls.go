package ir

// CallNamed builds an ordinary (non-intrinsic) named Call, used for the
// handful of operators (shift_right, shift_left, abs) with no dedicated
// Expr variant of their own: they ride the generic Call node, the same way
// Halide-style IRs model bitshifts and abs as intrinsic-named calls rather
// than operators.
func CallNamed(t Type, name string, args ...*Expr) *Expr {
	return &Expr{Type: t, Kind: Call{Name: name, Op: OpNone, Args: args}}
}

// ShiftRight builds a shift_right(x, y) call; y > 0 shifts right, y < 0
// (where the callee permits it) shifts left.
func ShiftRight(x, y *Expr) *Expr { return CallNamed(x.Type, "shift_right", x, y) }

// ShiftLeft builds a shift_left(x, y) call.
func ShiftLeft(x, y *Expr) *Expr { return CallNamed(x.Type, "shift_left", x, y) }

// Abs builds an abs(x) call.
func Abs(t Type, x *Expr) *Expr { return CallNamed(t, "abs", x) }

// AsNamedCall reports whether e is an ordinary (non-intrinsic) Call named
// name, returning its Call payload.
func AsNamedCall(e *Expr, name string) (Call, bool) {
	c, ok := e.Kind.(Call)
	if !ok || c.Op != OpNone || c.Name != name {
		return Call{}, false
	}
	return c, true
}

// AsIntrinsic reports whether e is an intrinsic Call of op, returning its
// Call payload.
func AsIntrinsic(e *Expr, op IntrinsicOp) (Call, bool) {
	c, ok := e.Kind.(Call)
	if !ok || c.Op != op {
		return Call{}, false
	}
	return c, true
}
