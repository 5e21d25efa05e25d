// Package vector implements the optional embedding-similarity layer.
//
// The Index interface is a capability: the engine holds either a MemoryIndex
// fed by the embedding pipeline, or a NullIndex when no embedding provider is
// configured. Callers never type-inspect for absence; the null form simply
// returns empty candidate sets, which the ranker treats as "no semantic
// signal".
package vector
