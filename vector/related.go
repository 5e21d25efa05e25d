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


package vector

import (
	"context"
	"sort"

	"github.com/poiesic/recall/core"
)

// DefaultClusterThreshold is the minimum cosine similarity for an item to
// join an existing cluster.
const DefaultClusterThreshold = 0.75

// Clusterer is an optional capability of an Index: grouping an owner's items
// by embedding proximity. NullIndex does not implement it.
type Clusterer interface {
	Cluster(ctx context.Context, owner core.OwnerID, maxClusters int, threshold float32) ([][]core.ID, error)
}

var _ Clusterer = (*MemoryIndex)(nil)

// Cluster groups an owner's indexed items by embedding proximity using a
// greedy centroid assignment: each item joins the first cluster whose seed is
// within the threshold, otherwise it seeds a new cluster. This is the
// "related items" grouping capability; it is not used by ranked search.
//
// Returns up to maxClusters groups, largest first. An empty index yields nil.
func (x *MemoryIndex) Cluster(ctx context.Context, owner core.OwnerID, maxClusters int, threshold float32) ([][]core.ID, error) {
	x.mu.RLock()
	ids := make([]core.ID, 0, len(x.byOwner[owner]))
	for id := range x.byOwner[owner] {
		ids = append(ids, id)
	}
	vecs := make(map[core.ID][]float32, len(ids))
	for _, id := range ids {
		vecs[id] = x.entries[id].vec
	}
	x.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	// Deterministic assignment order
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var seeds [][]float32
	var clusters [][]core.ID
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assigned := false
		for i, seed := range seeds {
			if Dot(vecs[id], seed) >= threshold {
				clusters[i] = append(clusters[i], id)
				assigned = true
				break
			}
		}
		if !assigned {
			seeds = append(seeds, vecs[id])
			clusters = append(clusters, []core.ID{id})
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i]) > len(clusters[j])
	})
	if maxClusters > 0 && len(clusters) > maxClusters {
		clusters = clusters[:maxClusters]
	}
	return clusters, nil
}
