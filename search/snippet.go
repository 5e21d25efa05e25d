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


package search

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/recall/core"
)

const (
	snippetLength = 150
	snippetStride = 20
	ellipsis      = "…"
)

// makeSnippet extracts the densest query-term window from the body and marks
// term occurrences within it. Span offsets are byte positions relative to the
// returned snippet, ellipsis included.
//
// When no query term occurs literally in the body, for example a result found
// only by embedding similarity, the snippet falls back to the leading excerpt
// and literal reports false so callers can flag the match as meaning-based.
func makeSnippet(body string, terms []string) (snippet string, spans []core.MatchSpan, literal bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", nil, false
	}

	lower := strings.ToLower(body)
	if len(body) <= snippetLength {
		spans = markSpans(lower, terms, 0)
		return body, spans, len(spans) > 0
	}

	// Slide a fixed window over the body and keep the one containing the
	// most query-term occurrences. Coarse stride keeps this linear in
	// practice; exact window placement matters less than hitting the dense
	// region at all.
	bestStart, bestCount := 0, 0
	for start := 0; start+snippetLength <= len(lower); start += snippetStride {
		count := countOccurrences(lower[start:start+snippetLength], terms)
		if count > bestCount {
			bestStart, bestCount = start, count
		}
	}

	if bestCount == 0 {
		return body[:runeStart(body, snippetLength)] + ellipsis, nil, false
	}

	// Window edges land on byte offsets; pull them back to rune starts so
	// the snippet is never clipped mid-character.
	start := runeStart(body, bestStart)
	end := runeStart(body, start+snippetLength)
	snippet = body[start:end]
	prefix := ""
	if start > 0 {
		prefix = ellipsis
		snippet = prefix + snippet
	}
	if end < len(body) {
		snippet += ellipsis
	}

	spans = markSpans(lower[start:end], terms, len(prefix))
	return snippet, spans, true
}

// runeStart walks i back to the first byte of the rune it points into.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func countOccurrences(window string, terms []string) int {
	total := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		total += strings.Count(window, term)
	}
	return total
}

// markSpans finds every occurrence of every term in the lowercased text and
// returns byte spans shifted by base. Overlapping duplicates from repeated
// terms are merged.
func markSpans(lowerText string, terms []string, base int) []core.MatchSpan {
	var spans []core.MatchSpan
	for _, term := range terms {
		if term == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lowerText[from:], term)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, core.MatchSpan{
				Start: base + start,
				End:   base + start + len(term),
			})
			from = start + len(term)
		}
	}
	return mergeSpans(spans)
}

func mergeSpans(spans []core.MatchSpan) []core.MatchSpan {
	if len(spans) < 2 {
		return spans
	}
	sortSpans(spans)
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func sortSpans(spans []core.MatchSpan) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}
