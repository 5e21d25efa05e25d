package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/vector"
)

const (
	defaultPageSize        = 10
	defaultVectorTimeout   = 2 * time.Second
	defaultVectorThreshold = 0.60
	defaultVectorMaxHits   = 50
)

// Searcher provides hybrid lexical, fuzzy and embedding-similarity search
// over content items.
type Searcher struct {
	contentRepository storage.ContentRepository
	idx               *Index
	vectors           vector.Index
	embedder          ai.Embedder
	norm              *normalize.Normalizer
	logger            *slog.Logger

	vectorTimeout   time.Duration
	vectorThreshold float32
	vectorMaxHits   int

	lexical lexicalMatcher
	fuzzy   fuzzyMatcher
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithVectorTimeout bounds how long one query waits for the embedding
// provider before falling back to lexical and fuzzy signals only.
// Default is 2 seconds.
func WithVectorTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d > 0 {
			s.vectorTimeout = d
		}
		return nil
	}
}

// WithVectorThreshold sets the minimum cosine similarity for vector
// candidates. Default is 0.60.
func WithVectorThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		s.vectorThreshold = threshold
		return nil
	}
}

// NewSearcher creates a new searcher. The embedder may be nil when vectors is
// a vector.NullIndex; the vector stage is then skipped entirely.
func NewSearcher(
	contentRepository storage.ContentRepository,
	idx *Index,
	vectors vector.Index,
	embedder ai.Embedder,
	norm *normalize.Normalizer,
	opts ...Option,
) (*Searcher, error) {
	if contentRepository == nil {
		return nil, ErrContentRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if norm == nil {
		return nil, ErrNormalizerRequired
	}

	s := &Searcher{
		contentRepository: contentRepository,
		idx:               idx,
		vectors:           vectors,
		embedder:          embedder,
		norm:              norm,
		logger:            slog.Default(),
		vectorTimeout:     defaultVectorTimeout,
		vectorThreshold:   defaultVectorThreshold,
		vectorMaxHits:     defaultVectorMaxHits,
		lexical:           lexicalMatcher{idx: idx},
		fuzzy:             fuzzyMatcher{idx: idx},
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search runs the query and returns one ranked result page.
func (s *Searcher) Search(ctx context.Context, query core.Query) ([]*core.RankedResult, error) {
	return s.SearchWithMonitor(ctx, query, nil)
}

// SearchWithMonitor runs the query with monitoring. The monitor receives
// callbacks at each stage of the search process, always from the calling
// goroutine.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query core.Query, monitor SearchMonitor) ([]*core.RankedResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := core.ValidateQuery(&query); err != nil {
		return nil, err
	}
	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}

	monitor.Start(query.Text)

	terms := s.norm.Query(query.Text)
	if len(terms.Tokens) == 0 {
		return nil, fmt.Errorf("%w: no searchable terms in %q", core.ErrInvalidQuery, query.Text)
	}
	monitor.AfterNormalize(terms)

	// Run the matchers concurrently. Matchers never fail the query; the
	// vector stage absorbs provider errors and returns an empty set.
	var (
		lexicalSet []core.Candidate
		fuzzySet   []core.Candidate
		vectorSet  []core.Candidate
		vectorSkip string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexicalSet = s.lexical.match(query.Owner, query.Kind, terms, query.Text)
		return nil
	})
	g.Go(func() error {
		fuzzySet = s.fuzzy.match(query.Owner, query.Kind, terms)
		return nil
	})
	g.Go(func() error {
		vectorSet, vectorSkip = s.vectorMatch(gctx, query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	monitor.AfterLexicalMatch(lexicalSet)
	monitor.AfterFuzzyMatch(fuzzySet)
	if vectorSkip != "" {
		monitor.VectorSkipped(vectorSkip)
	} else {
		monitor.AfterVectorMatch(vectorSet)
	}

	fusedAll := fuseCandidates(
		[][]core.Candidate{lexicalSet, fuzzySet, vectorSet},
		func(id core.ID) time.Time { return s.idx.UpdatedAt(query.Owner, id) },
	)
	monitor.AfterFusion(len(fusedAll))

	page := paginate(fusedAll, query.Offset, query.PageSize)
	results, err := s.hydrate(ctx, query.Owner, page, terms, monitor)
	if err != nil {
		return nil, err
	}

	monitor.Finish(results)
	return results, nil
}

// vectorMatch produces embedding-similarity candidates, or an empty set with
// a reason when the layer is unavailable or fails. It never errors: semantic
// signal loss degrades ranking, it does not fail the query.
func (s *Searcher) vectorMatch(ctx context.Context, query core.Query) ([]core.Candidate, string) {
	if !s.vectors.Available() {
		return nil, "vector index not available"
	}
	if s.embedder == nil {
		return nil, "no embedder configured"
	}

	vctx, cancel := context.WithTimeout(ctx, s.vectorTimeout)
	defer cancel()

	embedding, err := s.embedder.EmbedText(vctx, query.Text)
	if err != nil {
		s.logger.Warn("query embedding failed, continuing without vector signal", "err", err)
		return nil, "query embedding failed"
	}

	matches, err := s.vectors.Search(vctx, query.Owner, embedding, s.vectorThreshold, s.vectorMaxHits)
	if err != nil {
		s.logger.Warn("vector search failed, continuing without vector signal", "err", err)
		return nil, "vector search failed"
	}

	candidates := make([]core.Candidate, 0, len(matches))
	for _, match := range matches {
		if query.Kind != core.KindAny {
			doc := s.idx.Doc(query.Owner, match.ItemId)
			if doc == nil || doc.kind != query.Kind {
				continue
			}
		}
		candidates = append(candidates, core.Candidate{
			ItemId: match.ItemId,
			Score:  match.Score,
			Source: core.SourceVector,
		})
	}
	return candidates, ""
}

// hydrate loads the page's items from storage and attaches snippets. Entries
// whose backing item is gone or belongs to another owner are index
// corruption: they are dropped from the page and evicted from the indexes so
// the next search no longer sees them.
func (s *Searcher) hydrate(ctx context.Context, owner core.OwnerID, page []fused, terms normalize.QueryTerms, monitor SearchMonitor) ([]*core.RankedResult, error) {
	ids := make([]core.ID, 0, len(page))
	for _, f := range page {
		ids = append(ids, f.id)
	}

	items, err := s.contentRepository.GetItems(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving content items", "itemCount", len(ids), "err", err)
		return nil, err
	}
	byId := make(map[core.ID]*core.ContentItem, len(items))
	for _, item := range items {
		byId[item.Id] = item
	}

	results := make([]*core.RankedResult, 0, len(page))
	for _, f := range page {
		item, ok := byId[f.id]
		if !ok || item.Owner != owner {
			s.logger.Warn("dropping index entry without valid backing item", "id", f.id)
			s.idx.Remove(owner, f.id)
			s.vectors.Remove(f.id)
			monitor.DroppedCorruptEntry(f.id)
			continue
		}

		snippet, spans, literal := makeSnippet(item.Body, terms.Expanded)
		results = append(results, &core.RankedResult{
			Item:        item,
			Score:       f.score,
			Snippet:     snippet,
			Spans:       spans,
			MeaningOnly: !literal && !hasLiteralSource(f.sources),
			Sources:     f.sources,
		})
	}
	return results, nil
}

// hasLiteralSource reports whether any text matcher found the item. A title
// or tag hit leaves no body span, but it is still a literal match.
func hasLiteralSource(sources []core.MatcherSource) bool {
	for _, src := range sources {
		if src == core.SourceLexical || src == core.SourceFuzzy {
			return true
		}
	}
	return false
}
