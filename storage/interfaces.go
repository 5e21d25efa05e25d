package storage

import (
	"context"
	"time"

	"github.com/poiesic/recall/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ContentRepository provides operations for managing content items.
// Every listing operation is owner-scoped; there is no way to enumerate
// items across owners.
type ContentRepository interface {
	Repository

	// AddItems adds one or more content items to storage.
	// For items with ID=0, generates new IDs from sequence.
	// Sets CreatedAt/UpdatedAt and the initial ContentVersion.
	// Returns the items with generated IDs and timestamps populated.
	AddItems(ctx context.Context, items ...*core.ContentItem) ([]*core.ContentItem, error)

	// UpdateItems updates existing content items.
	// Updates the UpdatedAt timestamp automatically and bumps ContentVersion
	// when the title or body changed, which invalidates any stored embedding.
	// Returns ErrNotFound if any item doesn't exist.
	UpdateItems(ctx context.Context, items ...*core.ContentItem) ([]*core.ContentItem, error)

	// UpdateItemVector stores an embedding computed against the given content
	// version, writing only the vector fields. The version check and the
	// write share one transaction, so a concurrent edit is never overwritten
	// by stale state. Reports false without error when the content has moved
	// past contentVersion; returns ErrNotFound if the item doesn't exist.
	UpdateItemVector(ctx context.Context, id core.ID, contentVersion int64, vec []float32) (*core.ContentItem, bool, error)

	// DeleteItems removes content items by their IDs, together with their
	// owner, kind and date index entries, in one transaction.
	// Returns ErrNotFound if any item doesn't exist.
	DeleteItems(ctx context.Context, ids ...core.ID) error

	// GetItem retrieves a single content item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id core.ID) (*core.ContentItem, error)

	// GetItems retrieves multiple content items by their IDs.
	// Returns only the items that exist (no error for missing items).
	GetItems(ctx context.Context, ids ...core.ID) ([]*core.ContentItem, error)

	// GetOwnerItemsByKind retrieves up to limit items of one kind for an owner.
	// core.KindAny returns items of every kind.
	GetOwnerItemsByKind(ctx context.Context, owner core.OwnerID, kind core.Kind, limit int) ([]*core.ContentItem, error)

	// GetOwnerItemsByTag retrieves up to limit items of the owner carrying
	// the tag. Matching is case-insensitive.
	GetOwnerItemsByTag(ctx context.Context, owner core.OwnerID, tag string, limit int) ([]*core.ContentItem, error)

	// GetOwnerItemsByDateRange retrieves an owner's items within a time range.
	// Returns items where start <= CreatedAt < end, ordered by creation time.
	GetOwnerItemsByDateRange(ctx context.Context, owner core.OwnerID, start, end time.Time) ([]*core.ContentItem, error)

	// StreamOwnerItems calls fn for every item belonging to the owner.
	// Used for full index rebuilds. Iteration stops on the first error from fn.
	StreamOwnerItems(ctx context.Context, owner core.OwnerID, fn func(item *core.ContentItem) error) error
}
