package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/vector"
)

// Pipeline computes embeddings for content items asynchronously. Each job is
// tagged with the item's content version at enqueue time; a job whose version
// no longer matches the stored item at commit time is discarded, so a rapid
// edit sequence ends with at most one committed embedding, for the final
// content.
type Pipeline struct {
	contentRepository storage.ContentRepository
	embedder          ai.Embedder
	vectors           vector.Index
	pool              *ants.Pool
	logger            *slog.Logger

	retryAttempts int
	retryDelay    time.Duration

	wg sync.WaitGroup

	// mu guards pending and serializes commits.
	mu      sync.Mutex
	pending map[core.ID]int64 // latest enqueued content version per item
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetry sets the retry policy for embedding calls.
// Default is 3 attempts with a 500ms base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.retryAttempts = attempts
		p.retryDelay = baseDelay
		return nil
	}
}

// New creates an embedding pipeline.
func New(
	contentRepository storage.ContentRepository,
	embedder ai.Embedder,
	vectors vector.Index,
	opts ...Option,
) (*Pipeline, error) {
	if contentRepository == nil {
		return nil, ErrContentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		contentRepository: contentRepository,
		embedder:          embedder,
		vectors:           vectors,
		pool:              pool,
		logger:            slog.Default(),
		retryAttempts:     3,
		retryDelay:        500 * time.Millisecond,
		pending:           make(map[core.ID]int64),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(p); err != nil {
			pool.Release()
			return nil, err
		}
	}

	return p, nil
}

// Enqueue schedules an embedding computation for the item at the given
// content version. Enqueueing an older version than one already queued is a
// no-op; enqueueing a newer version supersedes the queued one, whose commit
// will be discarded.
func (p *Pipeline) Enqueue(id core.ID, version int64) {
	p.mu.Lock()
	if queued, ok := p.pending[id]; ok && queued >= version {
		p.mu.Unlock()
		return
	}
	p.pending[id] = version
	p.mu.Unlock()

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.run(id, version)
	})
	if err != nil {
		p.wg.Done()
		p.logger.Error("failed to submit embedding job", "id", id, "err", err)
	}
}

// Wait blocks until every queued job has finished. Intended for shutdown and
// tests; new jobs may still be enqueued afterwards.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release waits for in-flight jobs and shuts the worker pool down.
func (p *Pipeline) Release() {
	p.wg.Wait()
	p.pool.Release()
}

// run executes one embedding job. It verifies the job's version against the
// stored item twice: before the (slow) embedding call, to skip obviously
// stale work, and again at commit time under the pipeline lock, so at most
// one result is committed per item version.
func (p *Pipeline) run(id core.ID, version int64) {
	ctx := context.Background()

	item, err := p.contentRepository.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("skipping embedding for deleted item", "id", id)
		} else {
			p.logger.Error("error loading item for embedding", "id", id, "err", err)
		}
		p.forget(id, version)
		return
	}
	if item.ContentVersion != version {
		p.logger.Debug("skipping stale embedding job", "id", id,
			"jobVersion", version, "contentVersion", item.ContentVersion)
		p.forget(id, version)
		return
	}

	var embedding []float32
	err = RetryWithBackoff(ctx, func() error {
		var embedErr error
		embedding, embedErr = p.embedder.EmbedText(ctx, item.SearchText())
		return embedErr
	}, p.retryAttempts, p.retryDelay)
	if err != nil {
		p.logger.Warn("embedding failed, item stays without semantic signal",
			"id", id, "err", err)
		p.forget(id, version)
		return
	}

	p.commit(ctx, id, version, embedding)
}

func (p *Pipeline) commit(ctx context.Context, id core.ID, version int64, embedding []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A newer job superseded this one while we were embedding.
	if queued := p.pending[id]; queued > version {
		return
	}

	// The version check and the vector write share one storage transaction,
	// so a concurrent edit of any kind is never clobbered by this commit.
	item, committed, err := p.contentRepository.UpdateItemVector(ctx, id, version, embedding)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Error("error storing embedding", "id", id, "err", err)
		}
		delete(p.pending, id)
		return
	}
	if !committed {
		// The item was edited mid-flight; its own job will follow.
		if p.pending[id] == version {
			delete(p.pending, id)
		}
		return
	}

	p.vectors.Upsert(item.Owner, item.Id, embedding)
	delete(p.pending, id)

	p.logger.Debug("embedding committed", "id", id, "version", version)
}

// forget clears the pending marker for a job that produced no commit, unless
// a newer job has taken the slot.
func (p *Pipeline) forget(id core.ID, version int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[id] == version {
		delete(p.pending, id)
	}
}
