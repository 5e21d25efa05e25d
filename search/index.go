package search

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
)

// posting records how often a token occurs in each field of one document.
type posting struct {
	titleHits int
	bodyHits  int
	tagHits   int
}

// docEntry is the index-side view of one content item.
type docEntry struct {
	id        core.ID
	owner     core.OwnerID
	kind      core.Kind
	host      string // hostname for link items, already lowercased
	normText  string // normalized body+title text, for phrase matching
	createdAt time.Time
	updatedAt time.Time
}

// ownerShard holds one owner's postings. Shards are never shared between
// owners, so owner scoping holds structurally: a query can only ever touch
// its own shard.
type ownerShard struct {
	postings map[string]map[core.ID]*posting
	docs     map[core.ID]*docEntry
}

func newOwnerShard() *ownerShard {
	return &ownerShard{
		postings: make(map[string]map[core.ID]*posting),
		docs:     make(map[core.ID]*docEntry),
	}
}

// Index is the in-memory inverted index over normalized item text. It is
// read-mostly: matchers hold read locks concurrently while lifecycle
// operations take the write lock.
type Index struct {
	mu     sync.RWMutex
	norm   *normalize.Normalizer
	shards map[core.OwnerID]*ownerShard
}

// NewIndex creates an empty inverted index using the given normalizer.
func NewIndex(norm *normalize.Normalizer) *Index {
	return &Index{
		norm:   norm,
		shards: make(map[core.OwnerID]*ownerShard),
	}
}

// IndexItem adds or replaces the item in the index. Re-indexing an unchanged
// item produces an identical index state, which makes reindex idempotent.
func (x *Index) IndexItem(item *core.ContentItem) {
	titleTokens := x.norm.Tokenize(item.Title)
	bodyTokens := x.norm.Tokenize(item.Body)
	tagTokens := make([]string, 0, len(item.Tags))
	for _, tag := range item.Tags {
		tagTokens = append(tagTokens, x.norm.Tokenize(tag)...)
	}

	entry := &docEntry{
		id:        item.Id,
		owner:     item.Owner,
		kind:      item.Kind,
		host:      hostOf(item),
		normText:  strings.Join(bodyTokens, " "),
		createdAt: item.CreatedAt,
		updatedAt: item.UpdatedAt,
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	shard, ok := x.shards[item.Owner]
	if !ok {
		shard = newOwnerShard()
		x.shards[item.Owner] = shard
	}

	// Replace, not merge: drop stale postings first.
	shard.removeLocked(item.Id)
	shard.docs[item.Id] = entry

	for _, token := range titleTokens {
		shard.postingFor(token, item.Id).titleHits++
	}
	for _, token := range bodyTokens {
		shard.postingFor(token, item.Id).bodyHits++
	}
	for _, token := range tagTokens {
		shard.postingFor(token, item.Id).tagHits++
	}
}

// Remove deletes the item from the index, if present.
func (x *Index) Remove(owner core.OwnerID, id core.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if shard, ok := x.shards[owner]; ok {
		shard.removeLocked(id)
		delete(shard.docs, id)
	}
}

// Doc returns the index entry for an item, or nil if it isn't indexed.
func (x *Index) Doc(owner core.OwnerID, id core.ID) *docEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if shard, ok := x.shards[owner]; ok {
		return shard.docs[id]
	}
	return nil
}

// UpdatedAt returns the indexed update time for an item, used as the recency
// tie-breaker during fusion. Unindexed items get the zero time.
func (x *Index) UpdatedAt(owner core.OwnerID, id core.ID) time.Time {
	if doc := x.Doc(owner, id); doc != nil {
		return doc.updatedAt
	}
	return time.Time{}
}

// OwnerDocCount returns the number of indexed items for an owner.
func (x *Index) OwnerDocCount(owner core.OwnerID) int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if shard, ok := x.shards[owner]; ok {
		return len(shard.docs)
	}
	return 0
}

func (s *ownerShard) postingFor(token string, id core.ID) *posting {
	byDoc, ok := s.postings[token]
	if !ok {
		byDoc = make(map[core.ID]*posting)
		s.postings[token] = byDoc
	}
	p, ok := byDoc[id]
	if !ok {
		p = &posting{}
		byDoc[id] = p
	}
	return p
}

func (s *ownerShard) removeLocked(id core.ID) {
	for token, byDoc := range s.postings {
		if _, ok := byDoc[id]; ok {
			delete(byDoc, id)
			if len(byDoc) == 0 {
				delete(s.postings, token)
			}
		}
	}
}

// hostOf extracts the lowercased hostname of a link item, with any
// "www." prefix dropped.
func hostOf(item *core.ContentItem) string {
	if item.Kind != core.KindLink || item.URL == "" {
		return ""
	}
	parsed, err := url.Parse(item.URL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if host == "" {
		host = parsed.Path
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
