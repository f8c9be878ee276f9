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

const (
	fdStep = 1e-5
	fdTol  = 1e-4
)

func randomDense(rows, cols int, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return m
}

// weightedSum reduces a layer output to a scalar loss using fixed
// weights, so the loss gradient with respect to the output is exactly
// the weight matrix.
func weightedSum(y, w *mat.Dense) float64 {
	sum := 0.0
	yd := y.RawMatrix().Data
	wd := w.RawMatrix().Data
	for i := range yd {
		sum += yd[i] * wd[i]
	}
	return sum
}

// checkGradSlice compares an analytic gradient against central
// differences of the forward pass for every element of value.
func checkGradSlice(t *testing.T, label string, value, analytic []float64, forward func() float64) {
	t.Helper()
	for i := range value {
		orig := value[i]
		value[i] = orig + fdStep
		plus := forward()
		value[i] = orig - fdStep
		minus := forward()
		value[i] = orig

		numeric := (plus - minus) / (2 * fdStep)
		diff := math.Abs(numeric - analytic[i])
		scale := math.Max(1, math.Max(math.Abs(numeric), math.Abs(analytic[i])))
		if diff/scale > fdTol {
			t.Errorf("%s[%d]: analytic %v, numeric %v", label, i, analytic[i], numeric)
		}
	}
}
