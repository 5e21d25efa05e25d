package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/poiesic/recall/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchFixture struct {
	searcher *Searcher
	repo     storage.ContentRepository
	idx      *Index
	vectors  vector.Index
}

func newFixture(t *testing.T, vectors vector.Index, embedder ai.Embedder, opts ...Option) *searchFixture {
	t.Helper()

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if vectors == nil {
		vectors = vector.NullIndex{}
	}
	norm := normalize.New()
	idx := NewIndex(norm)

	searcher, err := NewSearcher(repo, idx, vectors, embedder, norm, opts...)
	require.NoError(t, err)

	return &searchFixture{searcher: searcher, repo: repo, idx: idx, vectors: vectors}
}

func (f *searchFixture) addItem(t *testing.T, item *core.ContentItem) *core.ContentItem {
	t.Helper()

	added, err := f.repo.AddItems(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, added, 1)
	f.idx.IndexItem(added[0])
	return added[0]
}

func resultIds(results []*core.RankedResult) []core.ID {
	ids := make([]core.ID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Item.Id)
	}
	return ids
}

func TestNewSearcher(t *testing.T) {
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	norm := normalize.New()
	idx := NewIndex(norm)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(repo, idx, vector.NullIndex{}, nil, norm)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("missing repository", func(t *testing.T) {
		_, err := NewSearcher(nil, idx, vector.NullIndex{}, nil, norm)
		assert.ErrorIs(t, err, ErrContentRepositoryRequired)
	})

	t.Run("missing index", func(t *testing.T) {
		_, err := NewSearcher(repo, nil, vector.NullIndex{}, nil, norm)
		assert.ErrorIs(t, err, ErrIndexRequired)
	})

	t.Run("missing vector index", func(t *testing.T) {
		_, err := NewSearcher(repo, idx, nil, nil, norm)
		assert.ErrorIs(t, err, ErrVectorIndexRequired)
	})

	t.Run("missing normalizer", func(t *testing.T) {
		_, err := NewSearcher(repo, idx, vector.NullIndex{}, nil, nil)
		assert.ErrorIs(t, err, ErrNormalizerRequired)
	})
}

func TestSearch_AbbreviationExpansion(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	ml := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Machine Learning Notes",
		Body:  "backprop and gradient descent walkthrough",
	})
	research := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Reading list",
		Body:  "artificial intelligence research survey papers",
	})
	f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Groceries",
		Body:  "milk eggs bread",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "AI"})
	require.NoError(t, err)

	ids := resultIds(results)
	assert.Contains(t, ids, ml.Id)
	assert.Contains(t, ids, research.Id)
	assert.Len(t, ids, 2)
}

func TestSearch_TypoTolerance(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	tips := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Weekly review",
		Body:  "productivity tips collected over the month",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "prdouctivity"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, tips.Id, results[0].Item.Id)
	assert.Contains(t, results[0].Sources, core.SourceFuzzy)
	assert.NotContains(t, results[0].Sources, core.SourceLexical)
}

func TestSearch_TitleOutweighsBody(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	titled := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Kayaking trip",
		Body:  "pack the dry bags",
	})
	mention := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Summer plans",
		Body:  "maybe some kayaking if the weather holds",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, titled.Id, results[0].Item.Id)
	assert.Equal(t, mention.Id, results[1].Item.Id)
}

func TestSearch_PhraseBonus(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	phrase := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Course",
		Body:  "machine learning fundamentals from lecture one",
	})
	scattered := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Workshop",
		Body:  "learning about machine tooling fundamentals",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "machine learning"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, phrase.Id, results[0].Item.Id)
	assert.Equal(t, scattered.Id, results[1].Item.Id)
}

func TestSearch_PrefixMatch(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	item := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Ideas",
		Body:  "kayaking routes along the coast",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayak"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, item.Id, results[0].Item.Id)
}

func TestSearch_HostnameMatch(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	link := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindLink,
		Title: "Watch later",
		Body:  "great pasta technique channel",
		URL:   "https://www.youtube.com/watch?v=abc123",
	})

	for _, query := range []string{"youtube.com", "youtube"} {
		results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: query})
		require.NoError(t, err)
		require.Len(t, results, 1, "query %q", query)
		assert.Equal(t, link.Id, results[0].Item.Id)
	}
}

func TestSearch_KindFilter(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Shopping thoughts",
		Body:  "groceries to restock",
	})
	task := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindTask,
		Title: "Errands",
		Body:  "buy groceries before the weekend",
	})

	results, err := f.searcher.Search(ctx, core.Query{
		Owner: "alice", Text: "groceries", Kind: core.KindTask,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, task.Id, results[0].Item.Id)
}

func TestSearch_OwnerIsolation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	mine := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Journal",
		Body:  "kayaking weekend recap",
	})
	f.addItem(t, &core.ContentItem{
		Owner: "bob", Kind: core.KindNote,
		Title: "Journal",
		Body:  "kayaking weekend recap",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, mine.Id, results[0].Item.Id)
	assert.Equal(t, core.OwnerID("alice"), results[0].Item.Owner)
}

func TestSearch_InvalidQueries(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	t.Run("missing owner", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, core.Query{Text: "anything"})
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
	})

	t.Run("stop words only", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "the of and"})
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "x", Offset: -1})
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
	})
}

func TestSearch_Deterministic(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.addItem(t, &core.ContentItem{
			Owner: "alice", Kind: core.KindNote,
			Title: "Log entry",
			Body:  "kayaking conditions looked fine",
		})
	}

	query := core.Query{Owner: "alice", Text: "kayaking"}
	first, err := f.searcher.Search(ctx, query)
	require.NoError(t, err)
	second, err := f.searcher.Search(ctx, query)
	require.NoError(t, err)

	assert.Equal(t, resultIds(first), resultIds(second))
}

func TestSearch_Pagination(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.addItem(t, &core.ContentItem{
			Owner: "alice", Kind: core.KindNote,
			Title: "Entry",
			Body:  "kayaking log",
		})
	}

	all, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, all, 5)

	page, err := f.searcher.Search(ctx, core.Query{
		Owner: "alice", Text: "kayaking", PageSize: 2, Offset: 2,
	})
	require.NoError(t, err)

	require.Len(t, page, 2)
	assert.Equal(t, resultIds(all)[2:4], resultIds(page))

	beyond, err := f.searcher.Search(ctx, core.Query{
		Owner: "alice", Text: "kayaking", PageSize: 2, Offset: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestSearch_EmbedderFailureDegrades(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ErrUnavailable
	}
	f := newFixture(t, vector.NewMemoryIndex(), embedder)
	ctx := context.Background()

	item := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Notes",
		Body:  "kayaking gear checklist",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, item.Id, results[0].Item.Id)
	assert.NotContains(t, results[0].Sources, core.SourceVector)
}

func TestSearch_MeaningOnlyResult(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	vectors := vector.NewMemoryIndex()
	f := newFixture(t, vectors, embedder)
	ctx := context.Background()

	item := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Recipe",
		Body:  "slow cooked ragu with fresh pappardelle",
	})
	vectors.Upsert("alice", item.Id, []float32{1, 0})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "dinner"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, item.Id, results[0].Item.Id)
	assert.True(t, results[0].MeaningOnly)
	assert.Empty(t, results[0].Spans)
	assert.Equal(t, []core.MatcherSource{core.SourceVector}, results[0].Sources)
}

func TestSearch_MultiSignalOutranksSingle(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	vectors := vector.NewMemoryIndex()
	f := newFixture(t, vectors, embedder)
	ctx := context.Background()

	both := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Trip",
		Body:  "kayaking route notes",
	})
	lexicalOnly := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Trip",
		Body:  "kayaking route notes",
	})
	vectors.Upsert("alice", both.Id, []float32{1, 0})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, both.Id, results[0].Item.Id)
	assert.Equal(t, lexicalOnly.Id, results[1].Item.Id)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_DropsEntriesWithoutBackingItem(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	// Indexed but never stored, as if a delete lost its index update.
	f.idx.IndexItem(&core.ContentItem{
		Id: 9999, Owner: "alice", Kind: core.KindNote,
		Title: "Ghost", Body: "kayaking ghost entry",
	})
	stored := f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Real",
		Body:  "kayaking plans",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, stored.Id, results[0].Item.Id)

	// The corrupt entry was evicted, not just skipped.
	assert.Nil(t, f.idx.Doc("alice", 9999))
}

func TestSearch_SnippetSpansMatchQuery(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Log",
		Body:  "Kayaking at dawn was calm. The kayaking club meets on Thursdays.",
	})

	results, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	r := results[0]
	assert.False(t, r.MeaningOnly)
	require.NotEmpty(t, r.Spans)
	for _, span := range r.Spans {
		assert.Equal(t, "kayaking", strings.ToLower(r.Snippet[span.Start:span.End]))
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.addItem(t, &core.ContentItem{
		Owner: "alice", Kind: core.KindNote,
		Title: "Log",
		Body:  "kayaking notes",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.searcher.Search(ctx, core.Query{Owner: "alice", Text: "kayaking"})
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	}
}
