// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNormalizeRowsUnitLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	y := NormalizeRows(randomDense(5, 8, rng))
	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		norm := 0.0
		for _, v := range y.RawRowView(i) {
			norm += v * v
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-12 {
			t.Errorf("row %d norm = %v, want 1", i, math.Sqrt(norm))
		}
	}
}

func TestNormalizeZeroRow(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{0, 0, 0, 3, 0, 4})
	y := NormalizeRows(x)
	for j := 0; j < 3; j++ {
		if got := y.At(0, j); got != 0 {
			t.Errorf("zero row element %d = %v, want 0", j, got)
		}
	}
	if got := y.At(1, 0); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("y[1][0] = %v, want 0.6", got)
	}
}

func TestL2NormGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	var l L2Norm
	x := randomDense(3, 4, rng)
	w := randomDense(3, 4, rng)

	forward := func() float64 { return weightedSum(l.Forward(x), w) }
	forward()
	dx := l.Backward(w)
	checkGradSlice(t, "dx", x.RawMatrix().Data, dx.RawMatrix().Data, forward)
}

func TestNormalizeVec(t *testing.T) {
	v := []float64{3, 4}
	NormalizeVec(v)
	if math.Abs(v[0]-0.6) > 1e-12 || math.Abs(v[1]-0.8) > 1e-12 {
		t.Errorf("NormalizeVec = %v, want [0.6 0.8]", v)
	}

	zero := []float64{0, 0}
	NormalizeVec(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed to %v", zero)
	}
}
