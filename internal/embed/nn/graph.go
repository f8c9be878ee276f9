// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import "sort"

// Graph holds the similarity edges in a form the attention layer can
// walk per destination. Raw directed edges are symmetrized, deduplicated
// and extended with one self-loop per node, so every row receives at
// least its own features during aggregation.
type Graph struct {
	NumNodes int

	// Src and Dst are parallel edge lists sorted by destination.
	Src, Dst []int

	// Offsets has NumNodes+1 entries; edges arriving at node d occupy
	// the half-open range [Offsets[d], Offsets[d+1]).
	Offsets []int
}

// NewGraph builds the aggregation structure from raw (src, dst) pairs.
// Node indices must already be validated against the dataset.
func NewGraph(numNodes int, edges [][2]int) *Graph {
	type edge struct{ src, dst int }
	seen := make(map[edge]struct{}, len(edges)*2+numNodes)
	for _, e := range edges {
		seen[edge{e[0], e[1]}] = struct{}{}
		seen[edge{e[1], e[0]}] = struct{}{}
	}
	for i := 0; i < numNodes; i++ {
		seen[edge{i, i}] = struct{}{}
	}

	flat := make([]edge, 0, len(seen))
	for e := range seen {
		flat = append(flat, e)
	}
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].dst != flat[j].dst {
			return flat[i].dst < flat[j].dst
		}
		return flat[i].src < flat[j].src
	})

	g := &Graph{
		NumNodes: numNodes,
		Src:      make([]int, len(flat)),
		Dst:      make([]int, len(flat)),
		Offsets:  make([]int, numNodes+1),
	}
	for i, e := range flat {
		g.Src[i] = e.src
		g.Dst[i] = e.dst
		g.Offsets[e.dst+1]++
	}
	for d := 0; d < numNodes; d++ {
		g.Offsets[d+1] += g.Offsets[d]
	}
	return g
}

// NumEdges reports the symmetrized edge count including self-loops.
func (g *Graph) NumEdges() int { return len(g.Src) }

// InDegree reports how many edges arrive at node d.
func (g *Graph) InDegree(d int) int { return g.Offsets[d+1] - g.Offsets[d] }
