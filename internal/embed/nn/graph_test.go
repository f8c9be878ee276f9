// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import "testing"

func TestNewGraphSymmetrizesAndAddsSelfLoops(t *testing.T) {
	g := NewGraph(3, [][2]int{{0, 1}})

	// 0->1 and 1->0 plus three self-loops.
	if g.NumEdges() != 5 {
		t.Fatalf("NumEdges = %d, want 5", g.NumEdges())
	}
	wantIn := []int{2, 2, 1}
	for d, want := range wantIn {
		if got := g.InDegree(d); got != want {
			t.Errorf("InDegree(%d) = %d, want %d", d, got, want)
		}
	}
}

func TestNewGraphDeduplicates(t *testing.T) {
	g := NewGraph(2, [][2]int{{0, 1}, {0, 1}, {1, 0}})
	// One edge pair plus two self-loops regardless of input repetition.
	if g.NumEdges() != 4 {
		t.Errorf("NumEdges = %d, want 4", g.NumEdges())
	}
}

func TestNewGraphOffsetsSorted(t *testing.T) {
	g := NewGraph(4, [][2]int{{2, 0}, {3, 1}, {0, 3}})
	if got, want := g.Offsets[0], 0; got != want {
		t.Errorf("Offsets[0] = %d, want %d", got, want)
	}
	if got, want := g.Offsets[4], g.NumEdges(); got != want {
		t.Errorf("Offsets[end] = %d, want edge count %d", got, want)
	}
	for d := 0; d < 4; d++ {
		prev := -1
		for ei := g.Offsets[d]; ei < g.Offsets[d+1]; ei++ {
			if g.Dst[ei] != d {
				t.Errorf("edge %d filed under destination %d but Dst = %d", ei, d, g.Dst[ei])
			}
			if g.Src[ei] <= prev {
				t.Errorf("sources not strictly increasing within destination %d", d)
			}
			prev = g.Src[ei]
		}
	}
}

func TestNewGraphIsolatedNodeKeepsSelfLoop(t *testing.T) {
	g := NewGraph(3, nil)
	for d := 0; d < 3; d++ {
		if g.InDegree(d) != 1 {
			t.Errorf("InDegree(%d) = %d, want self-loop only", d, g.InDegree(d))
		}
		ei := g.Offsets[d]
		if g.Src[ei] != d || g.Dst[ei] != d {
			t.Errorf("node %d edge = (%d,%d), want self-loop", d, g.Src[ei], g.Dst[ei])
		}
	}
}
