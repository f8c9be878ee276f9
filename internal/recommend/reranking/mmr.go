// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package reranking post-processes scored recommendation lists. The MMR
// reranker trades relevance against redundancy so the returned set
// spans more of the neighborhood instead of repeating one cluster.
package reranking

// maxCandidates bounds the quadratic similarity work per request. The
// engine already caps its pool at twice the requested depth; this guard
// holds for any caller.
const maxCandidates = 2000

// Candidate pairs a node index with its relevance score.
type Candidate struct {
	Node  int
	Score float64
}

// SimilarityFunc reports the redundancy between two nodes, typically
// the cosine of their normalized embeddings.
type SimilarityFunc func(a, b int) float64

// MMR implements Maximal Marginal Relevance selection:
//
//	MMR(i) = lambda*score(i) - (1-lambda)*max(sim(i, s) for s picked)
//
// lambda 1 keeps the pure relevance order, lambda 0 maximizes spread.
type MMR struct {
	lambda float64
}

// NewMMR builds a reranker with lambda clamped to [0, 1].
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Lambda returns the clamped relevance weight.
func (m *MMR) Lambda() float64 { return m.lambda }

// Rerank greedily picks k candidates by MMR score. Candidates are
// expected in relevance order; ties keep that order. The input slice
// is not modified.
func (m *MMR) Rerank(cands []Candidate, k int, sim SimilarityFunc) []Candidate {
	if len(cands) == 0 || k <= 0 {
		return nil
	}
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	if k > len(cands) {
		k = len(cands)
	}
	if m.lambda >= 1 {
		out := make([]Candidate, k)
		copy(out, cands[:k])
		return out
	}

	selected := make([]Candidate, 0, k)
	picked := make([]bool, len(cands))
	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range cands {
			if picked[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				if v := sim(c.Node, s.Node); v > maxSim {
					maxSim = v
				}
			}
			score := m.lambda*c.Score - (1-m.lambda)*maxSim
			if bestIdx < 0 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx < 0 {
			break
		}
		picked[bestIdx] = true
		selected = append(selected, cands[bestIdx])
	}
	return selected
}
