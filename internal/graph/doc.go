// Package graph owns chunk records and the directed, typed references
// between them. Graph is the single source of truth; ReferenceCache is an
// LRU accelerator over its edge table with forward/reverse membership
// indices and lookup statistics.
//
// # Synchronization Contract
//
// Graph and ReferenceCache are single-writer structures with no internal
// locking. Concurrent mutation is undefined behaviour; callers invoking
// this package from a concurrent pipeline must serialise access with a
// mutex, a single-threaded actor, or by partitioning work per document so
// no two goroutines touch the same instance. Instances never share state.
package graph
