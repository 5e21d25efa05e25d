package badger

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// ContentRepository implements storage.ContentRepository for BadgerDB.
type ContentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ContentRepository = (*ContentRepository)(nil)

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(backend *Backend) (storage.ContentRepository, error) {
	return newContentRepository(backend)
}

func newContentRepository(backend *Backend) (*ContentRepository, error) {
	idSeq, err := backend.GetSequence(itemIDSeq)
	if err != nil {
		return nil, err
	}

	return &ContentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ContentRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ContentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddItems adds one or more content items to storage.
func (r *ContentRepository) AddItems(ctx context.Context, items ...*core.ContentItem) ([]*core.ContentItem, error) {
	for _, item := range items {
		if err := core.ValidateContentItem(item); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			if item.Kind == core.KindLink && item.URL != "" {
				// Links get content-derived ids, so re-capturing the same URL
				// for the same owner replaces the item instead of duplicating it.
				item.Id = core.IDFromContent(string(item.Owner) + "\x00" + item.URL)
				old, err := r.readItem(tx, makeItemKey(item.Id))
				if err != nil {
					return err
				}
				if old != nil {
					item.CreatedAt = old.CreatedAt
				}
			} else {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				item.Id = core.ID(nextID)
			}

			// Stored timestamps carry microsecond precision, so anything
			// finer would not survive a read back.
			now := time.Now().UTC().Truncate(time.Microsecond)
			if item.CreatedAt.IsZero() {
				item.CreatedAt = now
			} else {
				item.CreatedAt = item.CreatedAt.Truncate(time.Microsecond)
			}
			item.UpdatedAt = now
			item.ContentVersion = now.UnixMicro()

			if err := r.writeItem(tx, item); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return items, err
}

// UpdateItems updates existing content items.
func (r *ContentRepository) UpdateItems(ctx context.Context, items ...*core.ContentItem) ([]*core.ContentItem, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			key := makeItemKey(item.Id)

			// Read old item to detect changes
			old, err := r.readItem(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			if old.Owner != item.Owner {
				return core.ErrOwnerScope
			}

			item.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

			// A text edit invalidates the stored embedding until the pipeline
			// recomputes it against the new version.
			if old.Body != item.Body || old.Title != item.Title {
				item.ContentVersion = item.UpdatedAt.UnixMicro()
			}

			value := storage.MarshalContentItem(item)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update kind index if the kind changed
			if old.Kind != item.Kind {
				if err := tx.Delete(makeKindKey(old.Owner, old.Kind, old.Id)); err != nil {
					return err
				}
				if err := tx.Set(makeKindKey(item.Owner, item.Kind, item.Id), storage.MarshalID(item.Id)); err != nil {
					return err
				}
			}

			// Update date index if the creation time changed
			if !old.CreatedAt.Equal(item.CreatedAt) {
				if err := tx.Delete(makeDateKey(old.Owner, old.CreatedAt, old.Id)); err != nil {
					return err
				}
				if err := tx.Set(makeDateKey(item.Owner, item.CreatedAt, item.Id), storage.MarshalID(item.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return items, err
}

// UpdateItemVector stores an embedding computed against contentVersion,
// writing only the vector fields onto the item as it exists right now. The
// version check and the write share one transaction, so a concurrent edit
// either fails the check or conflicts the commit; it can never be reverted
// by a whole-item write of stale state. Reports false without error when the
// content has moved past contentVersion.
func (r *ContentRepository) UpdateItemVector(ctx context.Context, id core.ID, contentVersion int64, vec []float32) (*core.ContentItem, bool, error) {
	for {
		var (
			item      *core.ContentItem
			committed bool
		)
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			item, err = r.readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item == nil || item.ContentVersion != contentVersion {
				return nil
			}
			item.Vector = vec
			item.VectorVersion = contentVersion
			if err := tx.Set(makeItemKey(id), storage.MarshalContentItem(item)); err != nil {
				return err
			}
			committed = true
			return tx.Commit()
		}, true)
		if errors.Is(err, badger.ErrConflict) {
			// Lost the race against a concurrent write; re-read and re-check.
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if item == nil {
			return nil, false, storage.ErrNotFound
		}
		return item, committed, nil
	}
}

// DeleteItems removes content items by their IDs.
// The item record and all of its index entries go in one transaction, so a
// deleted item can never linger in an index.
func (r *ContentRepository) DeleteItems(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeItemKey(id)

			item, err := r.readItem(tx, key)
			if err != nil {
				return err
			}
			if item == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeOwnerKey(item.Owner, item.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeKindKey(item.Owner, item.Kind, item.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeDateKey(item.Owner, item.CreatedAt, item.Id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetItem retrieves a single content item by ID.
func (r *ContentRepository) GetItem(ctx context.Context, id core.ID) (*core.ContentItem, error) {
	var result *core.ContentItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeItemKey(id)
		var err error
		result, err = r.readItem(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetItems retrieves multiple content items by their IDs.
func (r *ContentRepository) GetItems(ctx context.Context, ids ...core.ID) ([]*core.ContentItem, error) {
	var result []*core.ContentItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeItemKey(id)
			item, err := r.readItem(tx, key)
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetOwnerItemsByKind retrieves up to limit items of one kind for an owner.
func (r *ContentRepository) GetOwnerItemsByKind(ctx context.Context, owner core.OwnerID, kind core.Kind, limit int) ([]*core.ContentItem, error) {
	if kind == core.KindAny {
		var result []*core.ContentItem
		err := r.StreamOwnerItems(ctx, owner, func(item *core.ContentItem) error {
			if limit > 0 && len(result) >= limit {
				return errStopIteration
			}
			result = append(result, item)
			return nil
		})
		if errors.Is(err, errStopIteration) {
			err = nil
		}
		return result, err
	}

	var result []*core.ContentItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialKindKey(owner, kind)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(result) >= limit {
				break
			}
			item, err := r.readItem(tx, makeItemKey(idFromKeySuffix(iter.Item().Key())))
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetOwnerItemsByDateRange retrieves an owner's items within a time range.
func (r *ContentRepository) GetOwnerItemsByDateRange(ctx context.Context, owner core.OwnerID, start, end time.Time) ([]*core.ContentItem, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.ContentItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialDateKey(owner, start)
		endKey := makePartialDateKey(owner, end)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, endKey) > 0 {
				break
			}

			item, err := r.readItem(tx, makeItemKey(idFromKeySuffix(key)))
			if err != nil {
				return err
			}
			if item != nil {
				results = append(results, item)
			}
		}
		return nil
	}, false)

	return results, err
}

// errStopIteration signals early termination of a stream; never returned to callers.
var errStopIteration = errors.New("stop iteration")

// GetOwnerItemsByTag retrieves up to limit items of the owner carrying the
// tag (case-insensitive). Tags are not indexed; this scans the owner's items.
func (r *ContentRepository) GetOwnerItemsByTag(ctx context.Context, owner core.OwnerID, tag string, limit int) ([]*core.ContentItem, error) {
	var items []*core.ContentItem
	err := r.StreamOwnerItems(ctx, owner, func(item *core.ContentItem) error {
		if slices.ContainsFunc(item.Tags, func(t string) bool { return strings.EqualFold(t, tag) }) {
			items = append(items, item)
		}
		if limit > 0 && len(items) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return items, nil
}

// StreamOwnerItems calls fn for every item belonging to the owner.
func (r *ContentRepository) StreamOwnerItems(ctx context.Context, owner core.OwnerID, fn func(item *core.ContentItem) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialOwnerKey(itemOwnerPrefix, owner)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			item, err := r.readItem(tx, makeItemKey(idFromKeySuffix(key)))
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// writeItem stores the primary record and all index entries for an item.
func (r *ContentRepository) writeItem(tx *badger.Txn, item *core.ContentItem) error {
	if err := tx.Set(makeItemKey(item.Id), storage.MarshalContentItem(item)); err != nil {
		return err
	}
	if err := tx.Set(makeOwnerKey(item.Owner, item.Id), storage.MarshalID(item.Id)); err != nil {
		return err
	}
	if err := tx.Set(makeKindKey(item.Owner, item.Kind, item.Id), storage.MarshalID(item.Id)); err != nil {
		return err
	}
	return tx.Set(makeDateKey(item.Owner, item.CreatedAt, item.Id), storage.MarshalID(item.Id))
}

// readItem reads a content item by key. Returns nil if the key doesn't exist.
func (r *ContentRepository) readItem(tx *badger.Txn, key []byte) (*core.ContentItem, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var item *core.ContentItem
	err = entry.Value(func(val []byte) error {
		var err error
		item, err = storage.UnmarshalContentItem(val)
		return err
	})
	return item, err
}
