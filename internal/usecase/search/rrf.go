package search

import (
	"sort"

	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges KNN and BM25 results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
func fuseRRF(knn, bm25 []domsearch.Hit, topK int) []domsearch.Hit {
	type scored struct {
		hit   domsearch.Hit
		score float64
	}

	merged := make(map[string]*scored)

	for rank := range knn {
		s := 1.0 / float64(rrfK+rank+1)
		merged[knn[rank].Document().ID()] = &scored{hit: knn[rank], score: s}
	}

	for rank := range bm25 {
		s := 1.0 / float64(rrfK+rank+1)
		id := bm25[rank].Document().ID()
		if existing, ok := merged[id]; ok {
			existing.score += s
		} else {
			merged[id] = &scored{hit: bm25[rank], score: s}
		}
	}

	hits := make([]domsearch.Hit, 0, len(merged))
	for _, s := range merged {
		hits = append(hits, s.hit.WithScore(s.score))
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score() > hits[j].Score()
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	return hits
}
