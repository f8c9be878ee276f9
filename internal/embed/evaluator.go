// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"sort"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/dataset"
)

// HitsKs are the cutoffs reported by every evaluation.
var HitsKs = []int{1, 3, 5, 10}

// EvalQuery groups all targets that share one query node.
type EvalQuery struct {
	Query   int
	Targets []int
}

// EvalSet is a resolved evaluation workload. Pairs whose query or
// target title is unknown are dropped and counted, not failed.
type EvalSet struct {
	Queries []EvalQuery
	Dropped int
}

// BuildEvalSet resolves title pairs against the dataset index, grouping
// targets by query in first-appearance order.
func BuildEvalSet(pairs []dataset.EvalPair, indexByTitle map[string]int) *EvalSet {
	set := &EvalSet{}
	order := make(map[int]int)
	for _, pair := range pairs {
		q, okQ := indexByTitle[pair.Query]
		t, okT := indexByTitle[pair.Target]
		if !okQ || !okT || q == t {
			set.Dropped++
			continue
		}
		slot, seen := order[q]
		if !seen {
			slot = len(set.Queries)
			order[q] = slot
			set.Queries = append(set.Queries, EvalQuery{Query: q})
		}
		set.Queries[slot].Targets = append(set.Queries[slot].Targets, t)
	}
	return set
}

// Empty reports whether no pair survived resolution.
func (e *EvalSet) Empty() bool { return len(e.Queries) == 0 }

// Hits computes Hits@K over the normalized embedding for every K in
// HitsKs: the fraction of queries whose top-K cosine neighbors (query
// excluded) contain at least one target.
func (e *EvalSet) Hits(z *mat.Dense) map[int]float64 {
	hits := make(map[int]float64, len(HitsKs))
	if e.Empty() {
		return hits
	}
	maxK := HitsKs[len(HitsKs)-1]

	n, _ := z.Dims()
	type scored struct {
		node int
		sim  float64
	}
	ranked := make([]scored, 0, n)
	counts := make(map[int]int, len(HitsKs))
	for _, q := range e.Queries {
		queryRow := z.RawRowView(q.Query)
		ranked = ranked[:0]
		for j := 0; j < n; j++ {
			if j == q.Query {
				continue
			}
			ranked = append(ranked, scored{node: j, sim: vek.Dot(queryRow, z.RawRowView(j))})
		}
		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].sim != ranked[b].sim {
				return ranked[a].sim > ranked[b].sim
			}
			return ranked[a].node < ranked[b].node
		})

		targets := make(map[int]struct{}, len(q.Targets))
		for _, t := range q.Targets {
			targets[t] = struct{}{}
		}
		firstHit := -1
		limit := maxK
		if limit > len(ranked) {
			limit = len(ranked)
		}
		for rank := 0; rank < limit; rank++ {
			if _, ok := targets[ranked[rank].node]; ok {
				firstHit = rank
				break
			}
		}
		if firstHit < 0 {
			continue
		}
		for _, k := range HitsKs {
			if firstHit < k {
				counts[k]++
			}
		}
	}

	total := float64(len(e.Queries))
	for _, k := range HitsKs {
		hits[k] = float64(counts[k]) / total
	}
	return hits
}
