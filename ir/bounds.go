package ir

import "math/big"

// Interval is a conservative [Min, Max] bound on the integer value an
// expression can take. A nil bound means "unknown in that direction"; the
// zero Interval (both nil) means "no information".
type Interval struct {
	Min, Max *big.Int
}

// Unbounded is the interval carrying no information.
var Unbounded = Interval{}

// Full returns the widest interval representable by t, used as the
// starting point for any expression whose value isn't otherwise
// constrained (an unconstrained Var, or a lane from a Load).
func Full(t Type) Interval {
	if t.Code == Float || t.Code == HandleCode {
		return Unbounded
	}
	if t.Code == Bool {
		return Interval{Min: big.NewInt(0), Max: big.NewInt(1)}
	}
	return Interval{Min: big.NewInt(t.MinInt()), Max: new(big.Int).SetUint64(t.MaxInt())}
}

func ivAdd(a, b Interval) Interval {
	var out Interval
	if a.Min != nil && b.Min != nil {
		out.Min = new(big.Int).Add(a.Min, b.Min)
	}
	if a.Max != nil && b.Max != nil {
		out.Max = new(big.Int).Add(a.Max, b.Max)
	}
	return out
}

func ivSub(a, b Interval) Interval {
	var out Interval
	if a.Min != nil && b.Max != nil {
		out.Min = new(big.Int).Sub(a.Min, b.Max)
	}
	if a.Max != nil && b.Min != nil {
		out.Max = new(big.Int).Sub(a.Max, b.Min)
	}
	return out
}

func ivMul(a, b Interval) Interval {
	if a.Min == nil || a.Max == nil || b.Min == nil || b.Max == nil {
		return Unbounded
	}
	candidates := []*big.Int{
		new(big.Int).Mul(a.Min, b.Min),
		new(big.Int).Mul(a.Min, b.Max),
		new(big.Int).Mul(a.Max, b.Min),
		new(big.Int).Mul(a.Max, b.Max),
	}
	lo, hi := candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		if c.Cmp(lo) < 0 {
			lo = c
		}
		if c.Cmp(hi) > 0 {
			hi = c
		}
	}
	return Interval{Min: lo, Max: hi}
}

func ivUnion(a, b Interval) Interval {
	var out Interval
	if a.Min != nil && b.Min != nil {
		if a.Min.Cmp(b.Min) < 0 {
			out.Min = a.Min
		} else {
			out.Min = b.Min
		}
	}
	if a.Max != nil && b.Max != nil {
		if a.Max.Cmp(b.Max) > 0 {
			out.Max = a.Max
		} else {
			out.Max = b.Max
		}
	}
	return out
}

// BoundsCache memoizes interval queries by expression identity: computing
// an interval walks the whole subtree, so a
// predicate that calls it repeatedly across a pattern match must not redo
// that work each time.
type BoundsCache struct {
	cache map[*Expr]Interval
}

// NewBoundsCache creates an empty cache.
func NewBoundsCache() *BoundsCache {
	return &BoundsCache{cache: make(map[*Expr]Interval)}
}

// Scope maps a let-bound name to the interval of its value, consulted by
// Var nodes. Callers pass a shallow copy so nested Let bindings don't
// mutate an ancestor's scope.
type Scope map[string]Interval

// Bounds returns (and caches) a conservative interval for e under scope.
func (c *BoundsCache) Bounds(e *Expr, scope Scope) Interval {
	if iv, ok := c.cache[e]; ok {
		return iv
	}
	iv := c.compute(e, scope)
	c.cache[e] = iv
	return iv
}

func (c *BoundsCache) compute(e *Expr, scope Scope) Interval {
	switch k := e.Kind.(type) {
	case ImmInt:
		return Interval{Min: big.NewInt(k.Value), Max: big.NewInt(k.Value)}
	case ImmUint:
		v := new(big.Int).SetUint64(k.Value)
		return Interval{Min: v, Max: v}
	case ImmBool:
		n := int64(0)
		if k.Value {
			n = 1
		}
		return Interval{Min: big.NewInt(n), Max: big.NewInt(n)}
	case Var:
		if iv, ok := scope[k.Name]; ok {
			return iv
		}
		return Full(e.Type)
	case Cast:
		if e.Type.Code == Float {
			return Unbounded
		}
		inner := c.Bounds(k.X, scope)
		full := Full(e.Type)
		return intersect(inner, full)
	case Reinterpret:
		return Full(e.Type)
	case Add:
		return intersect(ivAdd(c.Bounds(k.X, scope), c.Bounds(k.Y, scope)), Full(e.Type))
	case Sub:
		return intersect(ivSub(c.Bounds(k.X, scope), c.Bounds(k.Y, scope)), Full(e.Type))
	case Mul:
		return intersect(ivMul(c.Bounds(k.X, scope), c.Bounds(k.Y, scope)), Full(e.Type))
	case Min:
		a, b := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		var out Interval
		if a.Min != nil && b.Min != nil {
			out.Min = minBig(a.Min, b.Min)
		}
		if a.Max != nil && b.Max != nil {
			out.Max = minBig(a.Max, b.Max)
		}
		return out
	case Max:
		a, b := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		var out Interval
		if a.Min != nil && b.Min != nil {
			out.Min = maxBig(a.Min, b.Min)
		}
		if a.Max != nil && b.Max != nil {
			out.Max = maxBig(a.Max, b.Max)
		}
		return out
	case Select:
		return ivUnion(c.Bounds(k.T, scope), c.Bounds(k.F, scope))
	case Let:
		inner := Scope{}
		for n, v := range scope {
			inner[n] = v
		}
		inner[k.Name] = c.Bounds(k.Value, scope)
		return c.Bounds(k.Body, inner)
	case Call:
		return c.boundsOfCall(e.Type, k, scope)
	default:
		return Full(e.Type)
	}
}

func (c *BoundsCache) boundsOfCall(t Type, call Call, scope Scope) Interval {
	switch call.Op {
	case OpWideningAdd, OpWidenRightAdd:
		return intersect(ivAdd(c.Bounds(call.Args[0], scope), c.Bounds(call.Args[1], scope)), Full(t))
	case OpWideningSub, OpWidenRightSub:
		return intersect(ivSub(c.Bounds(call.Args[0], scope), c.Bounds(call.Args[1], scope)), Full(t))
	case OpWideningMul, OpWidenRightMul:
		return intersect(ivMul(c.Bounds(call.Args[0], scope), c.Bounds(call.Args[1], scope)), Full(t))
	case OpSaturatingAdd, OpSaturatingSub, OpSaturatingCast, OpHalvingAdd, OpHalvingSub, OpRoundingHalvingAdd:
		return Full(t)
	default:
		return Full(t)
	}
}

func intersect(a, b Interval) Interval {
	out := a
	if b.Min != nil && (out.Min == nil || b.Min.Cmp(out.Min) > 0) {
		out.Min = b.Min
	}
	if b.Max != nil && (out.Max == nil || b.Max.Cmp(out.Max) < 0) {
		out.Max = b.Max
	}
	return out
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) > 0 {
		return a
	}
	return b
}

// UpperBounded reports whether e is provably <= bound.
func (c *BoundsCache) UpperBounded(e *Expr, scope Scope, bound *big.Int) bool {
	iv := c.Bounds(e, scope)
	return iv.Max != nil && iv.Max.Cmp(bound) <= 0
}

// LowerBounded reports whether e is provably >= bound.
func (c *BoundsCache) LowerBounded(e *Expr, scope Scope, bound *big.Int) bool {
	iv := c.Bounds(e, scope)
	return iv.Min != nil && iv.Min.Cmp(bound) >= 0
}

// CanProve does a best-effort structural/interval proof that cond always
// holds; it is conservative (may return false for a true condition) but
// never returns true for a false one.
func (c *BoundsCache) CanProve(cond *Expr, scope Scope) bool {
	switch k := cond.Kind.(type) {
	case LE:
		x, y := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		return x.Max != nil && y.Min != nil && x.Max.Cmp(y.Min) <= 0
	case LT:
		x, y := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		return x.Max != nil && y.Min != nil && x.Max.Cmp(y.Min) < 0
	case GE:
		x, y := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		return x.Min != nil && y.Max != nil && x.Min.Cmp(y.Max) >= 0
	case GT:
		x, y := c.Bounds(k.X, scope), c.Bounds(k.Y, scope)
		return x.Min != nil && y.Max != nil && x.Min.Cmp(y.Max) > 0
	case ImmBool:
		return k.Value
	default:
		return false
	}
}
