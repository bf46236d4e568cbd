// Package depgraph holds the module dependency graph and the walks the
// registry and lifecycle managers run over it.
//
// Walks use an explicit stack with white/gray/black colouring, so cycles are
// reported instead of recursing forever and depth is bounded by the heap
// rather than the goroutine stack.
package depgraph
