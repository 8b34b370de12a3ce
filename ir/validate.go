package ir

import "fmt"

// TypeError reports that a rewrite changed an expression's static type,
// which no rewrite may do except through an explicit Cast node.
type TypeError struct {
	Op       string
	Before   Type
	After    Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("ir: %s: rewrite changed type from %v to %v", e.Op, e.Before, e.After)
}

// AssertSameType returns a *TypeError if before and after differ, unless
// after's root is an explicit Cast — the one rewrite shape allowed to
// introduce a new static type.
func AssertSameType(op string, before, after *Expr) error {
	if before.Type.Equal(after.Type) {
		return nil
	}
	if _, ok := after.Kind.(Cast); ok {
		return nil
	}
	return &TypeError{Op: op, Before: before.Type, After: after.Type}
}
