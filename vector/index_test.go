package vector

import (
	"context"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_Search(t *testing.T) {
	x := NewMemoryIndex()
	ctx := context.Background()

	x.Upsert("alice", 1, []float32{1, 0, 0})
	x.Upsert("alice", 2, []float32{0.9, 0.1, 0})
	x.Upsert("alice", 3, []float32{0, 0, 1})
	x.Upsert("bob", 4, []float32{1, 0, 0})

	matches, err := x.Search(ctx, "alice", []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(1), matches[0].ItemId)
	assert.Equal(t, core.ID(2), matches[1].ItemId)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryIndex_OwnerIsolation(t *testing.T) {
	x := NewMemoryIndex()
	ctx := context.Background()

	x.Upsert("alice", 1, []float32{1, 0})
	x.Upsert("bob", 2, []float32{1, 0})

	matches, err := x.Search(ctx, "alice", []float32{1, 0}, 0, 10)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, core.ID(1), matches[0].ItemId)
}

func TestMemoryIndex_Remove(t *testing.T) {
	x := NewMemoryIndex()
	ctx := context.Background()

	x.Upsert("alice", 1, []float32{1, 0})
	x.Remove(1)

	matches, err := x.Search(ctx, "alice", []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryIndex_Neighbors(t *testing.T) {
	x := NewMemoryIndex()
	ctx := context.Background()

	x.Upsert("alice", 1, []float32{1, 0, 0})
	x.Upsert("alice", 2, []float32{0.95, 0.05, 0})
	x.Upsert("alice", 3, []float32{0, 1, 0})
	x.Upsert("bob", 4, []float32{1, 0, 0})

	neighbors, err := x.Neighbors(ctx, 1, 5)
	require.NoError(t, err)

	// The reference item itself is excluded, as is bob's identical vector.
	require.Len(t, neighbors, 1)
	assert.Equal(t, core.ID(2), neighbors[0].ItemId)
}

func TestMemoryIndex_NeighborsUnknownItem(t *testing.T) {
	x := NewMemoryIndex()

	neighbors, err := x.Neighbors(context.Background(), 99, 5)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestNullIndex(t *testing.T) {
	var x Index = NullIndex{}
	ctx := context.Background()

	assert.False(t, x.Available())

	x.Upsert("alice", 1, []float32{1})
	matches, err := x.Search(ctx, "alice", []float32{1}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	neighbors, err := x.Neighbors(ctx, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestNormalize(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("zero vector", func(t *testing.T) {
		assert.Nil(t, Normalize([]float32{0, 0}))
	})

	t.Run("empty vector", func(t *testing.T) {
		assert.Nil(t, Normalize(nil))
	})
}

func TestCluster(t *testing.T) {
	x := NewMemoryIndex()
	ctx := context.Background()

	// Two tight groups and one outlier
	x.Upsert("alice", 1, []float32{1, 0, 0})
	x.Upsert("alice", 2, []float32{0.98, 0.02, 0})
	x.Upsert("alice", 3, []float32{0, 1, 0})
	x.Upsert("alice", 4, []float32{0.02, 0.98, 0})
	x.Upsert("alice", 5, []float32{0, 0, 1})

	clusters, err := x.Cluster(ctx, "alice", 0, 0.9)
	require.NoError(t, err)

	require.Len(t, clusters, 3)
	assert.Len(t, clusters[0], 2)
	assert.Len(t, clusters[1], 2)
	assert.Len(t, clusters[2], 1)
}
