// Package runtime is the host-side surface that loads a compiled
// tensorshade module (the side-car header plus SPIR-V body emitted by
// package emit) and drives it on a Vulkan compute queue: a process-wide
// device context, a content-addressed compilation cache keyed by the
// module's fingerprint, a buffer allocator, and a synchronous dispatch
// path.
//
// Everything here is specified at interface level: the concurrency
// invariants (single-owner acquisition, guaranteed
// release on every exit path, synchronous submission with no in-flight
// ordering beyond queue-idle) rather than a tuned production scheduler.
package runtime
