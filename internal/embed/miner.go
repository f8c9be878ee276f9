// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"math/rand"
	"sort"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/embed/losses"
)

// Miner regenerates ranking triplets from the current embedding. For
// each tagged anchor it samples same-tag positives and pairs them with
// the nearest nodes that share no tag (hard negatives under the current
// geometry). Candidate sets depend only on the static tag structure and
// are built once.
type Miner struct {
	maxPerAnchor int
	rng          *rand.Rand

	positives [][]int // same-tag candidates per node
	negatives [][]int // non-tag-sharing candidates per node
}

// NewMiner precomputes the candidate sets from the per-node tag sets.
func NewMiner(tagSets [][]int, numTags, maxPerAnchor int, rng *rand.Rand) *Miner {
	n := len(tagSets)
	positives := losses.PositiveSets(tagSets, numTags)

	negatives := make([][]int, n)
	for i := range negatives {
		if len(tagSets[i]) == 0 {
			continue
		}
		isPositive := make(map[int]struct{}, len(positives[i]))
		for _, p := range positives[i] {
			isPositive[p] = struct{}{}
		}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if _, ok := isPositive[j]; ok {
				continue
			}
			negatives[i] = append(negatives[i], j)
		}
	}

	return &Miner{
		maxPerAnchor: maxPerAnchor,
		rng:          rng,
		positives:    positives,
		negatives:    negatives,
	}
}

// Mine builds the triplet set against the given normalized embedding.
// When no anchor can form a triplet it falls back to sequential
// triplets so the ranking loss never starves.
func (m *Miner) Mine(z *mat.Dense) []losses.Triplet {
	n, _ := z.Dims()
	var triplets []losses.Triplet
	for anchor := 0; anchor < n; anchor++ {
		pos := m.positives[anchor]
		neg := m.negatives[anchor]
		if len(pos) == 0 || len(neg) == 0 {
			continue
		}

		sampled := m.samplePositives(pos)
		hard := m.hardestNegatives(z, anchor, neg, len(sampled))
		for i := range sampled {
			if i >= len(hard) {
				break
			}
			triplets = append(triplets, losses.Triplet{
				Anchor:   anchor,
				Positive: sampled[i],
				Negative: hard[i],
			})
		}
	}

	if len(triplets) == 0 && n >= 3 {
		for i := 0; i < n; i++ {
			triplets = append(triplets, losses.Triplet{
				Anchor:   i,
				Positive: (i + 1) % n,
				Negative: (i + 2) % n,
			})
		}
	}
	return triplets
}

// samplePositives shuffles a copy of the candidate list and takes up to
// maxPerAnchor entries.
func (m *Miner) samplePositives(pos []int) []int {
	sampled := append([]int(nil), pos...)
	m.rng.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	if len(sampled) > m.maxPerAnchor {
		sampled = sampled[:m.maxPerAnchor]
	}
	return sampled
}

// hardestNegatives ranks the candidate negatives by similarity to the
// anchor, most similar first.
func (m *Miner) hardestNegatives(z *mat.Dense, anchor int, neg []int, k int) []int {
	type scored struct {
		node int
		sim  float64
	}
	anchorRow := z.RawRowView(anchor)
	ranked := make([]scored, len(neg))
	for i, j := range neg {
		ranked[i] = scored{node: j, sim: vek.Dot(anchorRow, z.RawRowView(j))}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].sim != ranked[b].sim {
			return ranked[a].sim > ranked[b].sim
		}
		return ranked[a].node < ranked[b].node
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].node
	}
	return out
}
