// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/openai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
	"github.com/poiesic/recall/pipeline"
	"github.com/poiesic/recall/search"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/poiesic/recall/vector"
)

// lockStripes fixes the granularity of per-item lifecycle serialization.
const lockStripes = 64

// Engine is the capture and retrieval engine: owner-scoped content storage,
// hybrid search and the asynchronous embedding pipeline behind one facade.
type Engine struct {
	backend     *badger.Backend
	contentRepo storage.ContentRepository
	idx         *search.Index
	vectors     vector.Index
	provider    ai.EmbeddingProvider
	embedPipe   *pipeline.Pipeline
	searcher    *search.Searcher
	logger      *slog.Logger

	itemLocks [lockStripes]sync.Mutex

	// The lexical and vector indexes live in memory and are rebuilt lazily
	// per owner after a restart.
	warmMu sync.Mutex
	warmed map[core.OwnerID]bool
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig     *ai.Config
	provider     ai.EmbeddingProvider
	noEmbeddings bool
	inMemory     bool
	logger       *slog.Logger
	searchOpts   []search.Option
	pipelineOpts []pipeline.Option
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider injects an embedding provider, bypassing WithAIConfig.
// The engine takes ownership and closes it on Close.
func WithProvider(provider ai.EmbeddingProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithoutEmbeddings disables the semantic layer entirely. Search runs on the
// lexical and fuzzy matchers alone.
func WithoutEmbeddings() EngineOption {
	return func(o *engineOptions) {
		o.noEmbeddings = true
	}
}

// WithInMemory opens the storage backend without touching disk.
// Intended for tests.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSearchOptions forwards options to the internal searcher.
func WithSearchOptions(opts ...search.Option) EngineOption {
	return func(o *engineOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// WithPipelineOptions forwards options to the embedding pipeline.
func WithPipelineOptions(opts ...pipeline.Option) EngineOption {
	return func(o *engineOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// Open creates an engine backed by a badger database at filePath.
func Open(filePath string, opts ...EngineOption) (*Engine, error) {
	// Apply options
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	contentRepo, err := badger.NewContentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	norm := normalize.New()
	idx := search.NewIndex(norm)

	var (
		provider ai.EmbeddingProvider
		embedder ai.Embedder
		vectors  vector.Index = vector.NullIndex{}
	)
	if !options.noEmbeddings {
		provider = options.provider
		if provider == nil {
			provider, err = openai.NewProvider(options.aiConfig)
			if err != nil {
				backend.Close()
				return nil, err
			}
		}
		embedder = provider.Embedder()
		vectors = vector.NewMemoryIndex()
	}

	searcher, err := search.NewSearcher(contentRepo, idx, vectors, embedder, norm,
		append([]search.Option{search.WithLogger(options.logger)}, options.searchOpts...)...)
	if err != nil {
		if provider != nil {
			provider.Close()
		}
		backend.Close()
		return nil, err
	}

	var embedPipe *pipeline.Pipeline
	if embedder != nil {
		embedPipe, err = pipeline.New(contentRepo, embedder, vectors,
			append([]pipeline.Option{pipeline.WithLogger(options.logger)}, options.pipelineOpts...)...)
		if err != nil {
			provider.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Engine{
		backend:     backend,
		contentRepo: contentRepo,
		idx:         idx,
		vectors:     vectors,
		provider:    provider,
		embedPipe:   embedPipe,
		searcher:    searcher,
		logger:      options.logger,
		warmed:      make(map[core.OwnerID]bool),
	}, nil
}

// Close flushes the embedding pipeline and releases every resource.
func (e *Engine) Close() error {
	if e.embedPipe != nil {
		e.embedPipe.Release()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing embedding provider", "err", err)
		}
	}
	if err := e.contentRepo.Close(); err != nil {
		e.logger.Error("error closing content repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// ContentRepository exposes the underlying storage for advanced callers.
func (e *Engine) ContentRepository() storage.ContentRepository {
	return e.contentRepo
}

// Searcher exposes the internal searcher, for callers that want monitoring
// hooks.
func (e *Engine) Searcher() *search.Searcher {
	return e.searcher
}

// SaveItem stores a new content item, indexes it and schedules its embedding.
// The returned item carries the generated id, timestamps and content version.
func (e *Engine) SaveItem(ctx context.Context, item *core.ContentItem) (*core.ContentItem, error) {
	added, err := e.contentRepo.AddItems(ctx, item)
	if err != nil {
		return nil, err
	}
	saved := added[0]

	e.idx.IndexItem(saved)
	e.scheduleEmbedding(saved)
	return saved, nil
}

// UpdateItem applies an edit. A change to the title or body bumps the content
// version, which stales any stored embedding until the pipeline catches up.
func (e *Engine) UpdateItem(ctx context.Context, item *core.ContentItem) (*core.ContentItem, error) {
	unlock := e.lockItem(item.Id)
	defer unlock()

	updated, err := e.contentRepo.UpdateItems(ctx, item)
	if err != nil {
		return nil, err
	}
	current := updated[0]

	e.idx.IndexItem(current)
	e.scheduleEmbedding(current)
	return current, nil
}

// GetItem retrieves one item within the owner's scope.
func (e *Engine) GetItem(ctx context.Context, owner core.OwnerID, id core.ID) (*core.ContentItem, error) {
	item, err := e.contentRepo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Owner != owner {
		// Within the caller's scope the item does not exist.
		return nil, storage.ErrNotFound
	}
	return item, nil
}

// ToggleComplete flips the completion flag of a task or reminder. The item
// text is untouched, so the stored embedding stays valid.
func (e *Engine) ToggleComplete(ctx context.Context, owner core.OwnerID, id core.ID) (*core.ContentItem, error) {
	unlock := e.lockItem(id)
	defer unlock()

	item, err := e.GetItem(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != core.KindTask && item.Kind != core.KindReminder {
		return nil, fmt.Errorf("%w: completion toggle requires a task or reminder, got %s",
			core.ErrInvalidKind, item.Kind)
	}

	item.Completed = !item.Completed
	updated, err := e.contentRepo.UpdateItems(ctx, item)
	if err != nil {
		return nil, err
	}
	e.idx.IndexItem(updated[0])
	return updated[0], nil
}

// DeleteItem removes the item from storage and both indexes. Any in-flight
// embedding job for it is discarded at commit time.
func (e *Engine) DeleteItem(ctx context.Context, owner core.OwnerID, id core.ID) error {
	unlock := e.lockItem(id)
	defer unlock()

	if _, err := e.GetItem(ctx, owner, id); err != nil {
		return err
	}
	if err := e.contentRepo.DeleteItems(ctx, id); err != nil {
		return err
	}
	e.idx.Remove(owner, id)
	e.vectors.Remove(id)
	return nil
}

// Search runs an owner-scoped hybrid search and returns one ranked page.
func (e *Engine) Search(ctx context.Context, query core.Query) ([]*core.RankedResult, error) {
	if err := e.warmOwner(ctx, query.Owner); err != nil {
		return nil, err
	}
	return e.searcher.Search(ctx, query)
}

// Reindex re-derives the index entries of a single item from storage. It is
// idempotent; reindexing an unchanged item leaves the indexes identical.
// Reindexing a missing item evicts its leftover entries.
func (e *Engine) Reindex(ctx context.Context, owner core.OwnerID, id core.ID) error {
	unlock := e.lockItem(id)
	defer unlock()

	item, err := e.GetItem(ctx, owner, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.idx.Remove(owner, id)
			e.vectors.Remove(id)
			return nil
		}
		return err
	}

	e.idx.IndexItem(item)
	e.scheduleEmbedding(item)
	return nil
}

// RebuildIndex re-indexes every item of the owner from storage and returns
// the number of items indexed. Items with a current embedding go straight
// into the vector index; stale ones are queued for re-embedding.
func (e *Engine) RebuildIndex(ctx context.Context, owner core.OwnerID) (int, error) {
	count := 0
	err := e.contentRepo.StreamOwnerItems(ctx, owner, func(item *core.ContentItem) error {
		e.idx.IndexItem(item)
		e.scheduleEmbedding(item)
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	e.warmMu.Lock()
	e.warmed[owner] = true
	e.warmMu.Unlock()
	return count, nil
}

// RelatedItems returns items of the same owner nearest to the given item in
// embedding space. Without a semantic layer the result is empty.
func (e *Engine) RelatedItems(ctx context.Context, owner core.OwnerID, id core.ID, k int) ([]*core.ContentItem, error) {
	if _, err := e.GetItem(ctx, owner, id); err != nil {
		return nil, err
	}

	matches, err := e.vectors.Neighbors(ctx, id, k)
	if err != nil {
		return nil, err
	}
	return e.hydrateMatches(ctx, owner, matches)
}

// RelatedGroups clusters the owner's items by embedding proximity, largest
// group first. Without a semantic layer the result is empty.
func (e *Engine) RelatedGroups(ctx context.Context, owner core.OwnerID, maxGroups int) ([][]*core.ContentItem, error) {
	clusterer, ok := e.vectors.(vector.Clusterer)
	if !ok {
		return nil, nil
	}

	idGroups, err := clusterer.Cluster(ctx, owner, maxGroups, vector.DefaultClusterThreshold)
	if err != nil {
		return nil, err
	}

	groups := make([][]*core.ContentItem, 0, len(idGroups))
	for _, ids := range idGroups {
		items, err := e.contentRepo.GetItems(ctx, ids...)
		if err != nil {
			return nil, err
		}
		group := items[:0]
		for _, item := range items {
			if item.Owner == owner {
				group = append(group, item)
			}
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// WaitForEmbeddings blocks until all queued embedding jobs have finished.
func (e *Engine) WaitForEmbeddings() {
	if e.embedPipe != nil {
		e.embedPipe.Wait()
	}
}

func (e *Engine) hydrateMatches(ctx context.Context, owner core.OwnerID, matches []core.SimilarityMatch) ([]*core.ContentItem, error) {
	ids := make([]core.ID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ItemId)
	}
	items, err := e.contentRepo.GetItems(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byId := make(map[core.ID]*core.ContentItem, len(items))
	for _, item := range items {
		byId[item.Id] = item
	}

	// Preserve similarity order; drop anything outside the owner's scope.
	ordered := make([]*core.ContentItem, 0, len(matches))
	for _, m := range matches {
		item, ok := byId[m.ItemId]
		if !ok || item.Owner != owner {
			continue
		}
		ordered = append(ordered, item)
	}
	return ordered, nil
}

// scheduleEmbedding queues an embedding job when the item's stored vector is
// stale, and feeds a still-current vector straight into the vector index.
func (e *Engine) scheduleEmbedding(item *core.ContentItem) {
	if item.EmbeddingCurrent() {
		e.vectors.Upsert(item.Owner, item.Id, item.Vector)
		return
	}
	// A stale vector must not serve similarity queries; evict it until the
	// pipeline commits a fresh one.
	e.vectors.Remove(item.Id)
	if e.embedPipe != nil {
		e.embedPipe.Enqueue(item.Id, item.ContentVersion)
	}
}

// warmOwner rebuilds the in-memory indexes for an owner the first time that
// owner is queried after startup.
func (e *Engine) warmOwner(ctx context.Context, owner core.OwnerID) error {
	e.warmMu.Lock()
	done := e.warmed[owner]
	e.warmMu.Unlock()
	if done {
		return nil
	}

	_, err := e.RebuildIndex(ctx, owner)
	return err
}

// lockItem serializes lifecycle operations per item id.
func (e *Engine) lockItem(id core.ID) func() {
	m := &e.itemLocks[uint64(id)%lockStripes]
	m.Lock()
	return m.Unlock
}
