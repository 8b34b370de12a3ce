// Package ir defines the typed, SSA-style tensor-kernel expression tree
// that the intrinsic recognizer, intrinsic lowerer, and SPIR-V emitter all
// operate on.
//
// The tree is owned top-down: every recursive position is a pointer into a
// privately-held subtree. Sharing is expressed explicitly through Let
// bindings rather than through back-pointers or reference counting, so a
// pass can always walk a node's children without synchronizing with any
// other owner.
package ir
