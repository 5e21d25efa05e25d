package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// OwnerID identifies the user that owns a content item. The engine treats it
// as opaque; session-to-owner mapping happens outside this module.
type OwnerID string

// Kind classifies a content item.
type Kind int

const (
	// KindNote is free-form text captured by the user.
	KindNote Kind = iota + 1
	// KindLink is a saved URL with optional context.
	KindLink
	// KindTask is an actionable item that can be completed.
	KindTask
	// KindReminder is a time-anchored item with a due timestamp.
	KindReminder
	// KindFile is a reference to an uploaded file.
	KindFile
)

// KindAny matches every kind in queries.
const KindAny Kind = 0

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindLink:
		return "link"
	case KindTask:
		return "task"
	case KindReminder:
		return "reminder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// ContentItem represents a single saved item: a note, link, task, reminder or file.
// It may be enriched with an embedding vector after ingestion.
type ContentItem struct {
	Id        ID
	Owner     OwnerID
	Kind      Kind
	Title     string
	Body      string
	URL       string // set for KindLink
	Tags      []string
	Completed bool      // meaningful for KindTask
	CreatedAt time.Time // when the item was saved
	UpdatedAt time.Time // when the item was last edited
	DueAt     time.Time // zero if the item has no due time

	// ContentVersion is bumped on every body/title mutation. An embedding is
	// only valid while VectorVersion equals ContentVersion.
	ContentVersion int64
	Vector         []float32 // embedding vector (populated asynchronously)
	VectorVersion  int64     // ContentVersion the vector was computed against
}

// EmbeddingCurrent reports whether the stored vector was computed from the
// current body text. A stale vector must not be used for similarity search.
func (item *ContentItem) EmbeddingCurrent() bool {
	return len(item.Vector) > 0 && item.VectorVersion == item.ContentVersion
}

// SearchText builds the text that gets embedded and indexed for the item.
// The title is doubled to weight it above the body.
func (item *ContentItem) SearchText() string {
	parts := make([]string, 0, 4+len(item.Tags))
	if item.Title != "" {
		parts = append(parts, item.Title, item.Title)
	}
	if item.Body != "" {
		parts = append(parts, item.Body)
	}
	if item.Kind == KindLink && item.URL != "" {
		parts = append(parts, item.URL)
	}
	parts = append(parts, item.Tags...)
	return strings.Join(parts, " ")
}

// MatcherSource identifies which matcher produced a candidate.
type MatcherSource int

const (
	// SourceLexical is the inverted-index matcher.
	SourceLexical MatcherSource = iota + 1
	// SourceFuzzy is the edit-distance matcher.
	SourceFuzzy
	// SourceVector is the embedding-similarity matcher.
	SourceVector
)

func (s MatcherSource) String() string {
	switch s {
	case SourceLexical:
		return "lexical"
	case SourceFuzzy:
		return "fuzzy"
	case SourceVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Candidate is an item proposed by a single matcher before fusion.
// Score is matcher-local and not comparable across matchers until normalized.
type Candidate struct {
	ItemId ID
	Score  float32
	Source MatcherSource
}

// MatchSpan marks a matched byte range within an item's body.
type MatchSpan struct {
	Start int
	End   int
}

// RankedResult is one entry of an ordered search result page.
type RankedResult struct {
	Item    *ContentItem
	Score   float32 // fused composite score
	Snippet string
	Spans   []MatchSpan
	// MeaningOnly is true when no literal span exists and the snippet is a
	// leading excerpt from a semantic-only match.
	MeaningOnly bool
	Sources     []MatcherSource
}

// Query describes one owner-scoped search request.
type Query struct {
	Owner    OwnerID
	Text     string
	Kind     Kind // KindAny matches all kinds
	PageSize int
	Offset   int
}

// SimilarityMatch represents an item match from vector similarity search.
type SimilarityMatch struct {
	ItemId ID
	Score  float32
}
