// Package emit walks a compiled ir.Kernel's statement tree and drives the
// spirv package's builder to produce a complete SPIR-V module: a
// depth-first walker holding a symbol table, a
// workgroup-size triplet, and a per-entry-point descriptor-set table,
// never touching the builder's dedup caches directly.
package emit
