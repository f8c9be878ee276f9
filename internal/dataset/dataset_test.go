// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package dataset

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// testInputs builds a four-node snapshot: three tagged nodes, one
// untagged, one tag-label entry with no feature row.
func testInputs() Inputs {
	return Inputs{
		Features: mat.NewDense(4, 3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
			1, 1, 0,
		}),
		Edges: [][2]int{{0, 1}, {1, 2}, {2, 0}},
		RawTags: map[string][]string{
			"1":  {"array", "hash-table"},
			"2":  {"array", "two-pointers"},
			"3":  {"stack"},
			"99": {"array"}, // no feature row
		},
		EntityIndex: map[string]int{
			"problem:1": 0,
			"problem:2": 1,
			"problem:3": 2,
			"problem:4": 3,
		},
		Titles: map[string]string{
			"1": "Two Sum",
			"2": "Three Sum",
			"3": "Valid Parentheses",
			"4": "Merge Intervals",
		},
		IDPrefix: "problem:",
	}
}

func TestAssemble(t *testing.T) {
	d, err := Assemble(testInputs())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if d.NumNodes() != 4 {
		t.Errorf("NumNodes = %d, want 4", d.NumNodes())
	}

	wantVocab := []string{"array", "hash-table", "stack", "two-pointers"}
	if len(d.Vocab) != len(wantVocab) {
		t.Fatalf("Vocab = %v, want %v", d.Vocab, wantVocab)
	}
	for i, tag := range wantVocab {
		if d.Vocab[i] != tag {
			t.Errorf("Vocab[%d] = %q, want %q (vocabulary must be sorted)", i, d.Vocab[i], tag)
		}
	}

	// Multi-hot rows follow the sorted vocabulary.
	if got := d.TagMatrix.At(0, d.TagIndex["array"]); got != 1 {
		t.Errorf("node 0 array bit = %g, want 1", got)
	}
	if got := d.TagMatrix.At(0, d.TagIndex["stack"]); got != 0 {
		t.Errorf("node 0 stack bit = %g, want 0", got)
	}
	if got := d.TagMatrix.At(3, 0); got != 0 {
		t.Errorf("untagged node has non-zero tag bit %g", got)
	}

	if len(d.TagSets[3]) != 0 {
		t.Errorf("untagged node tag set = %v, want empty", d.TagSets[3])
	}

	if d.DocFreq[d.TagIndex["array"]] != 2 {
		t.Errorf("array doc freq = %d, want 2", d.DocFreq[d.TagIndex["array"]])
	}
	wantIDF := math.Log(4.0 / 2.0)
	if got := d.IDF[d.TagIndex["array"]]; math.Abs(got-wantIDF) > 1e-12 {
		t.Errorf("array idf = %g, want %g", got, wantIDF)
	}

	if d.SkippedTagIDs != 1 {
		t.Errorf("SkippedTagIDs = %d, want 1", d.SkippedTagIDs)
	}

	if idx, ok := d.IndexByTitle["Three Sum"]; !ok || idx != 1 {
		t.Errorf("IndexByTitle[Three Sum] = %d,%v, want 1,true", idx, ok)
	}
	if d.RawID(0) != "1" {
		t.Errorf("RawID(0) = %q, want 1", d.RawID(0))
	}
}

func TestAssembleDegradedText(t *testing.T) {
	d, err := Assemble(testInputs())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !d.DegradedText {
		t.Error("DegradedText = false, want true with no text features")
	}
	if d.Text != d.TagMatrix {
		t.Error("degraded mode must alias the tag matrix as text features")
	}

	in := testInputs()
	in.Text = mat.NewDense(4, 5, nil)
	d, err = Assemble(in)
	if err != nil {
		t.Fatalf("Assemble with text failed: %v", err)
	}
	if d.DegradedText {
		t.Error("DegradedText = true with explicit text features")
	}
	if d.TextDim() != 5 {
		t.Errorf("TextDim = %d, want 5", d.TextDim())
	}
}

func TestAssembleIntegrityErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Inputs)
	}{
		{"missing title", func(in *Inputs) { delete(in.Titles, "3") }},
		{"duplicate index", func(in *Inputs) { in.EntityIndex["problem:2"] = 0 }},
		{"index out of range", func(in *Inputs) { in.EntityIndex["problem:2"] = 9 }},
		{"negative index", func(in *Inputs) { in.EntityIndex["problem:2"] = -1 }},
		{"edge out of range", func(in *Inputs) { in.Edges = append(in.Edges, [2]int{0, 11}) }},
		{"feature row mismatch", func(in *Inputs) { in.Features = mat.NewDense(3, 3, nil) }},
		{"text row mismatch", func(in *Inputs) { in.Text = mat.NewDense(2, 4, nil) }},
		{"nil features", func(in *Inputs) { in.Features = nil }},
		{"empty entity index", func(in *Inputs) { in.EntityIndex = map[string]int{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInputs()
			tt.mutate(&in)
			_, err := Assemble(in)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInputIntegrity) {
				t.Errorf("error %v does not wrap ErrInputIntegrity", err)
			}
		})
	}
}

func TestSharedTags(t *testing.T) {
	d, err := Assemble(testInputs())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	shared := d.SharedTags(0, 1)
	if len(shared) != 1 || shared[0] != d.TagIndex["array"] {
		t.Errorf("SharedTags(0,1) = %v, want [%d]", shared, d.TagIndex["array"])
	}
	if got := d.SharedTags(0, 2); len(got) != 0 {
		t.Errorf("SharedTags(0,2) = %v, want empty", got)
	}
	if got := d.SharedTags(3, 0); len(got) != 0 {
		t.Errorf("SharedTags with untagged node = %v, want empty", got)
	}
}

func TestIDFWeights(t *testing.T) {
	weights := IDFWeights(10, []int{1, 5, 10, 0})

	if got, want := weights[0], math.Log(10.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("idf[0] = %g, want %g", got, want)
	}
	if got, want := weights[1], math.Log(2.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("idf[1] = %g, want %g", got, want)
	}
	if got := weights[2]; got != 0 {
		t.Errorf("idf for ubiquitous tag = %g, want 0", got)
	}
	// Zero document frequency clamps to 1 instead of dividing by zero.
	if got, want := weights[3], math.Log(10.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("idf[3] = %g, want %g", got, want)
	}
}

func TestWeightedTagVector(t *testing.T) {
	idf := []float64{2.0, 0.5, 1.0}
	v := WeightedTagVector([]int{0, 2}, idf)

	want := []float64{2.0, 0, 1.0}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("v[%d] = %g, want %g", i, v[i], want[i])
		}
	}
}
