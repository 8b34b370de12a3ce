// Package intrin implements the intrinsic recognizer and lowerer: a
// bottom-up term rewriter that lifts widening,
// rounding, saturating, halving, multiply-shift-right, and
// absolute-difference idioms out of ordinary arithmetic into named
// ir.IntrinsicOp calls, and its inverse, which expands an intrinsic call
// back into the reference arithmetic it stands for.
package intrin
