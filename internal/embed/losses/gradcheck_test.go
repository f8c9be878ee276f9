// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const (
	fdStep = 1e-6
	fdTol  = 1e-4
)

func randomDense(rows, cols int, scale float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return m
}

func unitRows(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		norm := 0.0
		for _, v := range src {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		for j, v := range src {
			dst[j] = v / norm
		}
	}
	return out
}

// checkLossGrad perturbs every element of value and compares the
// finite-difference slope of loss() against the analytic gradient.
func checkLossGrad(t *testing.T, label string, value, analytic []float64, loss func() float64) {
	t.Helper()
	for i := range value {
		orig := value[i]
		value[i] = orig + fdStep
		plus := loss()
		value[i] = orig - fdStep
		minus := loss()
		value[i] = orig

		numeric := (plus - minus) / (2 * fdStep)
		diff := math.Abs(numeric - analytic[i])
		scale := math.Max(1, math.Max(math.Abs(numeric), math.Abs(analytic[i])))
		if diff/scale > fdTol {
			t.Errorf("%s[%d]: analytic %v, numeric %v", label, i, analytic[i], numeric)
		}
	}
}
