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
	"time"

	"github.com/poiesic/recall/core"
)

// Matcher weights applied to rank-normalized scores during fusion. Lexical
// evidence is the strongest signal; fuzzy hits are inherently speculative.
const (
	lexicalWeight = 1.0
	vectorWeight  = 0.9
	fuzzyWeight   = 0.75
)

func sourceWeight(s core.MatcherSource) float32 {
	switch s {
	case core.SourceLexical:
		return lexicalWeight
	case core.SourceVector:
		return vectorWeight
	case core.SourceFuzzy:
		return fuzzyWeight
	default:
		return 0
	}
}

// fused is one item after fusion, carrying its composite score and every
// matcher that found it.
type fused struct {
	id      core.ID
	score   float32
	sources []core.MatcherSource
}

// fuseCandidates merges per-matcher candidate sets into one composite
// ranking.
//
// Raw matcher scores live on incompatible scales, so each set is first
// rank-normalized: within a set, the best candidate maps to 1.0 and the rest
// decrease linearly with rank. The composite score is the weighted sum of
// normalized scores across sets, which makes the multi-signal boost
// monotonic: an extra matcher finding an item can only raise its composite.
//
// Ordering is composite score descending, then most recently updated, then
// id ascending, so equal inputs always produce identical output.
func fuseCandidates(sets [][]core.Candidate, updatedAt func(core.ID) time.Time) []fused {
	merged := make(map[core.ID]*fused)

	for _, set := range sets {
		if len(set) == 0 {
			continue
		}
		ranked := make([]core.Candidate, len(set))
		copy(ranked, set)
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Score != ranked[j].Score {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].ItemId < ranked[j].ItemId
		})

		weight := sourceWeight(ranked[0].Source)
		n := float32(len(ranked))
		var normalized float32
		for rank, cand := range ranked {
			// Candidates with equal raw scores share a normalized score, so
			// ties in a matcher stay ties after fusion.
			if rank == 0 || cand.Score != ranked[rank-1].Score {
				normalized = 1.0 - float32(rank)/n
			}

			f, ok := merged[cand.ItemId]
			if !ok {
				f = &fused{id: cand.ItemId}
				merged[cand.ItemId] = f
			}
			f.score += weight * normalized
			f.sources = append(f.sources, cand.Source)
		}
	}

	results := make([]fused, 0, len(merged))
	for _, f := range merged {
		results = append(results, *f)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		ti, tj := updatedAt(results[i].id), updatedAt(results[j].id)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return results[i].id < results[j].id
	})
	return results
}

// paginate slices the fused ranking to the requested page.
func paginate(results []fused, offset, pageSize int) []fused {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if pageSize > 0 && len(results) > pageSize {
		results = results[:pageSize]
	}
	return results
}
