package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/recall/core"
)

// Index is the embedding-similarity capability consumed by the search layer.
// It is optional: when no embedding provider is configured the engine uses
// NullIndex and every lookup returns an empty candidate set.
type Index interface {
	// Upsert stores or replaces the vector for an item.
	Upsert(owner core.OwnerID, id core.ID, vec []float32)

	// Remove deletes the item's vector, if present.
	Remove(id core.ID)

	// Search returns up to k items of the owner whose vectors have cosine
	// similarity >= minSimilarity with the query vector, most similar first.
	Search(ctx context.Context, owner core.OwnerID, query []float32, minSimilarity float32, k int) ([]core.SimilarityMatch, error)

	// Neighbors returns up to k items nearest to the given item, excluding
	// the item itself. All results share the item's owner.
	Neighbors(ctx context.Context, id core.ID, k int) ([]core.SimilarityMatch, error)

	// Available reports whether the layer can serve similarity lookups.
	Available() bool
}

type entry struct {
	owner core.OwnerID
	vec   []float32 // unit length
}

// MemoryIndex is an in-memory cosine-similarity index, safe for concurrent
// use. Vectors are normalized on insert so similarity reduces to a dot
// product.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[core.ID]entry
	byOwner map[core.OwnerID]map[core.ID]struct{}
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[core.ID]entry),
		byOwner: make(map[core.OwnerID]map[core.ID]struct{}),
	}
}

// Upsert stores or replaces the vector for an item.
func (x *MemoryIndex) Upsert(owner core.OwnerID, id core.ID, vec []float32) {
	normalized := Normalize(vec)
	if len(normalized) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.entries[id]; ok && old.owner != owner {
		delete(x.byOwner[old.owner], id)
	}
	x.entries[id] = entry{owner: owner, vec: normalized}
	ids, ok := x.byOwner[owner]
	if !ok {
		ids = make(map[core.ID]struct{})
		x.byOwner[owner] = ids
	}
	ids[id] = struct{}{}
}

// Remove deletes the item's vector, if present.
func (x *MemoryIndex) Remove(id core.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if e, ok := x.entries[id]; ok {
		delete(x.byOwner[e.owner], id)
		delete(x.entries, id)
	}
}

// Search returns the owner's k nearest items to the query vector.
func (x *MemoryIndex) Search(ctx context.Context, owner core.OwnerID, query []float32, minSimilarity float32, k int) ([]core.SimilarityMatch, error) {
	normalized := Normalize(query)
	if len(normalized) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var matches []core.SimilarityMatch
	for id := range x.byOwner[owner] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := Dot(normalized, x.entries[id].vec)
		if score >= minSimilarity {
			matches = append(matches, core.SimilarityMatch{ItemId: id, Score: score})
		}
	}

	sortMatches(matches)
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Neighbors returns the k nearest items to the given item within its owner's
// scope, excluding the item itself.
func (x *MemoryIndex) Neighbors(ctx context.Context, id core.ID, k int) ([]core.SimilarityMatch, error) {
	x.mu.RLock()
	ref, ok := x.entries[id]
	x.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	matches, err := x.Search(ctx, ref.owner, ref.vec, relatedMinSimilarity, k+1)
	if err != nil {
		return nil, err
	}
	filtered := matches[:0]
	for _, m := range matches {
		if m.ItemId != id {
			filtered = append(filtered, m)
		}
	}
	if k > 0 && len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered, nil
}

// Available always returns true for the in-memory index.
func (x *MemoryIndex) Available() bool {
	return true
}

// relatedMinSimilarity filters out barely-related neighbors.
const relatedMinSimilarity = 0.4

// NullIndex is the capability's absent form: every lookup yields an empty
// candidate set and mutations are no-ops. Used when no embedding provider is
// configured.
type NullIndex struct{}

var _ Index = NullIndex{}

func (NullIndex) Upsert(core.OwnerID, core.ID, []float32) {}
func (NullIndex) Remove(core.ID)                          {}

func (NullIndex) Search(context.Context, core.OwnerID, []float32, float32, int) ([]core.SimilarityMatch, error) {
	return nil, nil
}

func (NullIndex) Neighbors(context.Context, core.ID, int) ([]core.SimilarityMatch, error) {
	return nil, nil
}

func (NullIndex) Available() bool { return false }

// sortMatches orders by score descending, ties by id ascending for
// deterministic output.
func sortMatches(matches []core.SimilarityMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ItemId < matches[j].ItemId
	})
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize normalizes a vector to unit length.
// Returns a new vector. A zero or empty vector yields nil.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))
	if magnitude == 0 {
		return nil
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
