package recall

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directionalEmbedder maps marker words to fixed directions so similarity is
// controlled by test data instead of a real model.
func directionalEmbedder() *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "kayak"):
			return []float32{1, 0, 0}, nil
		case strings.Contains(lower, "paddle"):
			return []float32{0.95, 0.05, 0}, nil
		case strings.Contains(lower, "tax"):
			return []float32{0, 1, 0}, nil
		default:
			return []float32{0, 0, 1}, nil
		}
	}
	return embedder
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	engine, err := Open("", append([]EngineOption{WithInMemory()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func newLexicalEngine(t *testing.T) *Engine {
	return newTestEngine(t, WithoutEmbeddings())
}

func newSemanticEngine(t *testing.T) *Engine {
	provider := mock.NewMockProviderWithEmbedder(directionalEmbedder())
	return newTestEngine(t, WithProvider(provider))
}

func saveNote(t *testing.T, e *Engine, owner core.OwnerID, title, body string) *core.ContentItem {
	t.Helper()

	item, err := e.SaveItem(context.Background(), &core.ContentItem{
		Owner: owner, Kind: core.KindNote, Title: title, Body: body,
	})
	require.NoError(t, err)
	return item
}

func TestEngine_SaveAndSearch(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	trip := saveNote(t, e, "alice", "Kayaking trip", "route and gear checklist")
	saveNote(t, e, "alice", "Taxes", "file the quarterly return")

	results, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, trip.Id, results[0].Item.Id)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestEngine_UpdateItemIsSearchableUnderNewText(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	item := saveNote(t, e, "alice", "Draft", "kayaking plans")

	item.Body = "climbing plans"
	_, err := e.UpdateItem(ctx, item)
	require.NoError(t, err)

	old, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)
	assert.Empty(t, old)

	current, err := e.Search(ctx, core.Query{Owner: "alice", Text: "climbing"})
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, item.Id, current[0].Item.Id)
}

func TestEngine_EmbeddingLifecycle(t *testing.T) {
	e := newSemanticEngine(t)
	ctx := context.Background()

	item := saveNote(t, e, "alice", "Trip", "kayak route notes")
	e.WaitForEmbeddings()

	stored, err := e.GetItem(ctx, "alice", item.Id)
	require.NoError(t, err)
	assert.True(t, stored.EmbeddingCurrent())
	assert.NotEmpty(t, stored.Vector)

	// A body edit stales the embedding until the pipeline catches up.
	stored.Body = "tax paperwork instead"
	updated, err := e.UpdateItem(ctx, stored)
	require.NoError(t, err)
	assert.False(t, updated.EmbeddingCurrent())

	e.WaitForEmbeddings()
	final, err := e.GetItem(ctx, "alice", item.Id)
	require.NoError(t, err)
	assert.True(t, final.EmbeddingCurrent())
	assert.Greater(t, final.VectorVersion, stored.VectorVersion)
}

func TestEngine_ToggleComplete(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	task, err := e.SaveItem(ctx, &core.ContentItem{
		Owner: "alice", Kind: core.KindTask,
		Title: "Errands", Body: "buy groceries",
	})
	require.NoError(t, err)
	require.False(t, task.Completed)

	toggled, err := e.ToggleComplete(ctx, "alice", task.Id)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	// Completion is metadata; the content version must not move.
	assert.Equal(t, task.ContentVersion, toggled.ContentVersion)

	back, err := e.ToggleComplete(ctx, "alice", task.Id)
	require.NoError(t, err)
	assert.False(t, back.Completed)

	t.Run("wrong kind", func(t *testing.T) {
		note := saveNote(t, e, "alice", "Note", "not completable")
		_, err := e.ToggleComplete(ctx, "alice", note.Id)
		assert.ErrorIs(t, err, core.ErrInvalidKind)
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, err := e.ToggleComplete(ctx, "bob", task.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestEngine_DeleteItem(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	item := saveNote(t, e, "alice", "Trip", "kayaking notes")

	t.Run("wrong owner cannot delete", func(t *testing.T) {
		err := e.DeleteItem(ctx, "bob", item.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	require.NoError(t, e.DeleteItem(ctx, "alice", item.Id))

	_, err := e.GetItem(ctx, "alice", item.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	results, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Deleting twice reports not found.
	assert.ErrorIs(t, e.DeleteItem(ctx, "alice", item.Id), storage.ErrNotFound)
}

func TestEngine_StopWordQueries(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	saveNote(t, e, "alice", "Trip", "kayaking notes")
	saveNote(t, e, "alice", "Taxes", "quarterly return")

	// A query of nothing but stop words carries no searchable terms.
	_, err := e.Search(ctx, core.Query{Owner: "alice", Text: "the of and"})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	// Stop words must not match on their own; only the content words do.
	results, err := e.Search(ctx, core.Query{Owner: "alice", Text: "the kayaking"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Trip", results[0].Item.Title)
}

func TestEngine_OwnerIsolation(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	saveNote(t, e, "alice", "Journal", "kayaking recap")
	saveNote(t, e, "bob", "Journal", "kayaking recap")

	for _, owner := range []core.OwnerID{"alice", "bob"} {
		results, err := e.Search(ctx, core.Query{Owner: owner, Text: "kayaking"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, owner, results[0].Item.Owner)
	}
}

func TestEngine_IndexSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir, WithoutEmbeddings())
	require.NoError(t, err)
	item, err := first.SaveItem(ctx, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Trip", Body: "kayaking notes",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A fresh process has empty in-memory indexes; the first search for the
	// owner rebuilds them from storage.
	second, err := Open(dir, WithoutEmbeddings())
	require.NoError(t, err)
	defer second.Close()

	results, err := second.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, item.Id, results[0].Item.Id)
}

func TestEngine_ReindexIdempotent(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	item := saveNote(t, e, "alice", "Trip", "kayaking notes")

	before, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.NoError(t, e.Reindex(ctx, "alice", item.Id))
	require.NoError(t, e.Reindex(ctx, "alice", item.Id))

	after, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, after, len(before))
	assert.Equal(t, before[0].Item.Id, after[0].Item.Id)
	assert.Equal(t, before[0].Score, after[0].Score)
}

func TestEngine_RebuildIndexCountsItems(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		saveNote(t, e, "alice", "Entry", "kayaking log")
	}
	saveNote(t, e, "bob", "Entry", "kayaking log")

	count, err := e.RebuildIndex(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEngine_RelatedItems(t *testing.T) {
	e := newSemanticEngine(t)
	ctx := context.Background()

	kayak := saveNote(t, e, "alice", "Trip", "kayak route")
	paddle := saveNote(t, e, "alice", "Gear", "paddle maintenance")
	saveNote(t, e, "alice", "Money", "tax paperwork")
	e.WaitForEmbeddings()

	related, err := e.RelatedItems(ctx, "alice", kayak.Id, 5)
	require.NoError(t, err)

	require.Len(t, related, 1)
	assert.Equal(t, paddle.Id, related[0].Id)

	t.Run("wrong owner", func(t *testing.T) {
		_, err := e.RelatedItems(ctx, "bob", kayak.Id, 5)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestEngine_RelatedItemsWithoutEmbeddings(t *testing.T) {
	e := newLexicalEngine(t)
	ctx := context.Background()

	item := saveNote(t, e, "alice", "Trip", "kayak route")

	related, err := e.RelatedItems(ctx, "alice", item.Id, 5)
	require.NoError(t, err)
	assert.Empty(t, related)

	groups, err := e.RelatedGroups(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestEngine_RelatedGroups(t *testing.T) {
	e := newSemanticEngine(t)
	ctx := context.Background()

	saveNote(t, e, "alice", "Trip", "kayak route")
	saveNote(t, e, "alice", "Gear", "paddle maintenance")
	saveNote(t, e, "alice", "Money", "tax paperwork")
	e.WaitForEmbeddings()

	groups, err := e.RelatedGroups(ctx, "alice", 0)
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}

func TestEngine_SemanticSearchFindsMeaningOnlyMatch(t *testing.T) {
	e := newSemanticEngine(t)
	ctx := context.Background()

	gear := saveNote(t, e, "alice", "Gear", "paddle maintenance checklist")
	e.WaitForEmbeddings()

	// "kayak" appears nowhere in the item, but its embedding direction is
	// close to the paddle item's.
	results, err := e.Search(ctx, core.Query{Owner: "alice", Text: "kayak"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, gear.Id, results[0].Item.Id)
	assert.True(t, results[0].MeaningOnly)
	assert.Equal(t, []core.MatcherSource{core.SourceVector}, results[0].Sources)
}
