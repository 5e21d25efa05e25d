// Package mock provides deterministic test doubles for the ai package
// interfaces. Embeddings are derived from an FNV hash of the input text, so
// identical text always produces identical vectors without any external
// service.
package mock
