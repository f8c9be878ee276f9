// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer y = xW + b.
type Linear struct {
	In, Out int

	W *mat.Dense // In×Out
	B []float64

	GradW *mat.Dense
	GradB []float64

	name string
	x    *mat.Dense // cached input for the backward pass
}

// NewLinear creates a layer with Glorot-uniform weights drawn from the
// run's seeded generator and zero biases.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:    in,
		Out:   out,
		W:     mat.NewDense(in, out, nil),
		B:     make([]float64, out),
		GradW: mat.NewDense(in, out, nil),
		GradB: make([]float64, out),
		name:  name,
	}
	limit := math.Sqrt(6.0 / float64(in+out))
	data := l.W.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return l
}

// Forward computes y = xW + b and caches x.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	l.x = x
	n, _ := x.Dims()
	y := mat.NewDense(n, l.Out, nil)
	y.Mul(x, l.W)
	for i := 0; i < n; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += l.B[j]
		}
	}
	return y
}

// Backward accumulates dW = xᵀ·dy and db = column sums of dy, and
// returns dx = dy·Wᵀ.
func (l *Linear) Backward(dy *mat.Dense) *mat.Dense {
	var dW mat.Dense
	dW.Mul(l.x.T(), dy)
	l.GradW.Add(l.GradW, &dW)

	n, _ := dy.Dims()
	for i := 0; i < n; i++ {
		row := dy.RawRowView(i)
		for j := range row {
			l.GradB[j] += row[j]
		}
	}

	dx := mat.NewDense(n, l.In, nil)
	dx.Mul(dy, l.W.T())
	return dx
}

// Params exposes the weight and bias tensors to the optimizer.
func (l *Linear) Params() []Param {
	return []Param{
		{Name: l.name + ".w", Value: l.W.RawMatrix().Data, Grad: l.GradW.RawMatrix().Data},
		{Name: l.name + ".b", Value: l.B, Grad: l.GradB},
	}
}
