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
	"sort"
	"strings"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
)

// Field and match weights for lexical scoring. Title hits dominate body hits
// so that an item titled after the query outranks one that merely mentions it.
const (
	titleWeight = 3.0
	tagWeight   = 2.0
	bodyWeight  = 1.0

	// Tokens added by abbreviation or synonym expansion count less than
	// tokens the user actually typed.
	expansionFactor = 0.6

	// A vocabulary token that merely starts with a query token counts less
	// than an exact hit.
	prefixFactor = 0.4

	phraseBonus = 2.0
	hostBonus   = 3.0

	// minTokenLen drops single-character tokens, which match everywhere and
	// carry no signal.
	minTokenLen = 2

	// minPrefixLen keeps prefix expansion from exploding on short tokens.
	minPrefixLen = 3
)

// lexicalMatcher scores items by exact and prefix token overlap against the
// inverted index.
type lexicalMatcher struct {
	idx *Index
}

// match returns raw lexical candidates for the query. Candidates are unsorted
// apart from a deterministic id order; ranking happens during fusion.
func (m *lexicalMatcher) match(owner core.OwnerID, kind core.Kind, terms normalize.QueryTerms, rawQuery string) []core.Candidate {
	m.idx.mu.RLock()
	defer m.idx.mu.RUnlock()

	shard, ok := m.idx.shards[owner]
	if !ok {
		return nil
	}

	original := make(map[string]bool, len(terms.Tokens))
	for _, t := range terms.Tokens {
		original[t] = true
	}

	scores := make(map[core.ID]float32)

	for _, token := range terms.Expanded {
		if len(token) < minTokenLen {
			continue
		}
		factor := float32(expansionFactor)
		if original[token] {
			factor = 1.0
		}

		for id, p := range shard.postings[token] {
			scores[id] += factor * fieldScore(p)
		}

		if len(token) >= minPrefixLen {
			for vocab, byDoc := range shard.postings {
				if vocab == token || !strings.HasPrefix(vocab, token) {
					continue
				}
				for id, p := range byDoc {
					scores[id] += factor * prefixFactor * fieldScore(p)
				}
			}
		}
	}

	// Multi-word queries reward documents containing the exact normalized
	// phrase.
	if len(terms.Tokens) > 1 {
		phrase := strings.Join(terms.Tokens, " ")
		for id := range scores {
			if strings.Contains(shard.docs[id].normText, phrase) {
				scores[id] += phraseBonus
			}
		}
	}

	// Hostname matching for links bypasses tokenization entirely: a query of
	// "youtube.com" or "youtube" should hit a link to www.youtube.com even
	// though dots never survive normalization.
	if raw := strings.ToLower(strings.TrimSpace(rawQuery)); raw != "" {
		for id, doc := range shard.docs {
			if doc.host == "" {
				continue
			}
			if strings.Contains(doc.host, raw) || strings.Contains(raw, doc.host) {
				scores[id] += hostBonus
			}
		}
	}

	candidates := make([]core.Candidate, 0, len(scores))
	for id, score := range scores {
		if kind != core.KindAny && shard.docs[id].kind != kind {
			continue
		}
		candidates = append(candidates, core.Candidate{
			ItemId: id,
			Score:  score,
			Source: core.SourceLexical,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ItemId < candidates[j].ItemId
	})
	return candidates
}

func fieldScore(p *posting) float32 {
	return titleWeight*float32(p.titleHits) +
		tagWeight*float32(p.tagHits) +
		bodyWeight*float32(p.bodyHits)
}
