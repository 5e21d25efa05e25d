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

	"github.com/hbollon/go-edlib"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/normalize"
)

const (
	// fuzzyThreshold is the minimum normalized Levenshtein similarity for a
	// vocabulary token to count as a typo variant of a query token.
	fuzzyThreshold = 0.8

	// fuzzyMinTokenLen skips short tokens, where a single edit flips between
	// unrelated words.
	fuzzyMinTokenLen = 3

	// fuzzyMaxLenDiff and fuzzyMinBigramOverlap prefilter the vocabulary so
	// the edit-distance computation only runs on plausible variants.
	fuzzyMaxLenDiff       = 2
	fuzzyMinBigramOverlap = 0.5
)

// fuzzyMatcher finds items whose indexed tokens are close misspellings of the
// query tokens. Exact matches are the lexical matcher's job and are skipped
// here, so a fuzzy hit always represents a variant spelling.
type fuzzyMatcher struct {
	idx *Index
}

func (m *fuzzyMatcher) match(owner core.OwnerID, kind core.Kind, terms normalize.QueryTerms) []core.Candidate {
	m.idx.mu.RLock()
	defer m.idx.mu.RUnlock()

	shard, ok := m.idx.shards[owner]
	if !ok {
		return nil
	}

	scores := make(map[core.ID]float32)

	for _, token := range terms.Tokens {
		if len(token) < fuzzyMinTokenLen {
			continue
		}
		queryGrams := bigrams(token)

		for vocab, byDoc := range shard.postings {
			if vocab == token || len(vocab) < fuzzyMinTokenLen {
				continue
			}
			if diff := len(vocab) - len(token); diff > fuzzyMaxLenDiff || diff < -fuzzyMaxLenDiff {
				continue
			}
			if bigramOverlap(queryGrams, bigrams(vocab)) < fuzzyMinBigramOverlap {
				continue
			}

			similarity, err := edlib.StringsSimilarity(token, vocab, edlib.Levenshtein)
			if err != nil || similarity < fuzzyThreshold {
				continue
			}

			for id, p := range byDoc {
				scores[id] += similarity * fieldScore(p)
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
			Source: core.SourceFuzzy,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ItemId < candidates[j].ItemId
	})
	return candidates
}

func bigrams(s string) map[string]struct{} {
	grams := make(map[string]struct{}, len(s))
	for i := 0; i+2 <= len(s); i++ {
		grams[s[i:i+2]] = struct{}{}
	}
	return grams
}

// bigramOverlap returns the share of a's bigrams also present in b.
func bigramOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}
