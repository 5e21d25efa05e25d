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


// Package normalize provides the deterministic, stateless text transform in
// front of every matcher: lowercasing, punctuation trimming, stop-word
// removal, abbreviation expansion and synonym augmentation.
//
// Expansion adds tokens alongside the originals, never replacing them, so
// recall grows without losing exact-match precision. The tables live in
// tables.go and are versioned by TableVersion.
package normalize

import "strings"

// trimSet is the punctuation trimmed from token edges.
const trimSet = ".,!?;:'\"-()[]{}"

// QueryTerms is the normalized form of one query.
type QueryTerms struct {
	// Tokens are the normalized original tokens, stop words removed,
	// in input order. Phrase matching uses these.
	Tokens []string

	// Expanded is Tokens plus abbreviation expansions and synonym tokens.
	// Recall-oriented matching uses these.
	Expanded []string
}

// Normalizer applies the normalization pipeline. The zero value is not
// usable; construct with New.
type Normalizer struct {
	keepStopWords bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStopWordsKept keeps stop words in the token stream instead of
// filtering them. Matching text must not use this; it exists for callers
// that need the full token sequence, such as verbatim phrase handling.
func WithStopWordsKept() Option {
	return func(n *Normalizer) {
		n.keepStopWords = true
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Tokenize splits text into lowercase tokens with edge punctuation trimmed
// and stop words removed. This is the transform applied to indexed text.
func (n *Normalizer) Tokenize(text string) []string {
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, trimSet))
		if cleaned == "" {
			continue
		}
		if !n.keepStopWords && stopWords[cleaned] {
			continue
		}
		tokens = append(tokens, cleaned)
	}
	return tokens
}

// Query normalizes query text and produces both the original token sequence
// and the expanded token set.
func (n *Normalizer) Query(text string) QueryTerms {
	tokens := n.Tokenize(text)
	return QueryTerms{
		Tokens:   tokens,
		Expanded: n.Expand(tokens),
	}
}

// Expand returns tokens plus abbreviation expansions and synonym tokens,
// deduplicated, originals first.
func (n *Normalizer) Expand(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	expanded := make([]string, 0, len(tokens))

	add := func(token string) {
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		expanded = append(expanded, token)
	}

	for _, token := range tokens {
		add(token)
	}
	for _, token := range tokens {
		if full, ok := abbreviations[token]; ok {
			for _, word := range strings.Fields(full) {
				add(word)
			}
		}
		for _, phrase := range synonyms[token] {
			for _, word := range strings.Fields(phrase) {
				add(word)
			}
		}
	}
	return expanded
}

// IsStopWord reports whether the token is in the stop-word table.
func IsStopWord(token string) bool {
	return stopWords[token]
}
