package core

import (
	"strings"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNote, "note"},
		{KindLink, "link"},
		{KindTask, "task"},
		{KindReminder, "reminder"},
		{KindFile, "file"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestContentItem_EmbeddingCurrent(t *testing.T) {
	item := &ContentItem{
		ContentVersion: 5,
		Vector:         []float32{0.1, 0.2},
		VectorVersion:  5,
	}
	if !item.EmbeddingCurrent() {
		t.Error("expected embedding to be current when versions match")
	}

	item.ContentVersion = 6
	if item.EmbeddingCurrent() {
		t.Error("expected embedding to be stale after a content version bump")
	}

	item.Vector = nil
	item.VectorVersion = 6
	if item.EmbeddingCurrent() {
		t.Error("expected missing vector to never be current")
	}
}

func TestContentItem_SearchText(t *testing.T) {
	item := &ContentItem{
		Kind:  KindLink,
		Title: "Go generics",
		Body:  "notes on type parameters",
		URL:   "https://go.dev/blog/intro-generics",
		Tags:  []string{"golang"},
	}

	text := item.SearchText()

	// Title appears twice so it outweighs the body.
	if got := strings.Count(text, "Go generics"); got != 2 {
		t.Errorf("title occurrences = %d, want 2", got)
	}
	if !strings.Contains(text, "type parameters") {
		t.Error("body missing from search text")
	}
	if !strings.Contains(text, "go.dev") {
		t.Error("link URL missing from search text")
	}
	if !strings.Contains(text, "golang") {
		t.Error("tags missing from search text")
	}
}

func TestContentItemMUS_RoundTrip(t *testing.T) {
	item := ContentItem{
		Id:             42,
		Owner:          "owner-1",
		Kind:           KindTask,
		Title:          "Buy groceries",
		Body:           "milk, eggs, bread",
		Tags:           []string{"errand", "home"},
		Completed:      true,
		ContentVersion: 3,
		Vector:         []float32{0.5, -0.25, 1.0},
		VectorVersion:  3,
	}

	buf := make([]byte, ContentItemMUS.Size(item))
	n := ContentItemMUS.Marshal(item, buf)
	if n != len(buf) {
		t.Fatalf("Marshal wrote %d bytes, Size reported %d", n, len(buf))
	}

	decoded, n, err := ContentItemMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Unmarshal consumed %d bytes, want %d", n, len(buf))
	}
	if decoded.Id != item.Id || decoded.Owner != item.Owner || decoded.Kind != item.Kind {
		t.Errorf("identity fields did not round-trip: %+v", decoded)
	}
	if decoded.Body != item.Body || !decoded.Completed {
		t.Errorf("content fields did not round-trip: %+v", decoded)
	}
	if len(decoded.Vector) != len(item.Vector) || decoded.VectorVersion != item.VectorVersion {
		t.Errorf("vector did not round-trip: %+v", decoded)
	}
}
