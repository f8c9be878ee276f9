// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ReLU clamps negative activations to zero.
type ReLU struct {
	mask []bool
}

func (r *ReLU) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if len(r.mask) != rows*cols {
		r.mask = make([]bool, rows*cols)
	}
	y := mat.NewDense(rows, cols, nil)
	src := x.RawMatrix().Data
	dst := y.RawMatrix().Data
	for i, v := range src {
		if v > 0 {
			dst[i] = v
			r.mask[i] = true
		} else {
			r.mask[i] = false
		}
	}
	return y
}

func (r *ReLU) Backward(dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	src := dy.RawMatrix().Data
	dst := dx.RawMatrix().Data
	for i, v := range src {
		if r.mask[i] {
			dst[i] = v
		}
	}
	return dx
}

// ELU is the exponential linear unit with alpha fixed at 1. The forward
// output is cached because the negative-branch derivative is y + alpha.
type ELU struct {
	y []float64
}

func (e *ELU) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if len(e.y) != rows*cols {
		e.y = make([]float64, rows*cols)
	}
	out := mat.NewDense(rows, cols, nil)
	src := x.RawMatrix().Data
	dst := out.RawMatrix().Data
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = math.Exp(v) - 1
		}
		e.y[i] = dst[i]
	}
	return out
}

func (e *ELU) Backward(dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	src := dy.RawMatrix().Data
	dst := dx.RawMatrix().Data
	for i, v := range src {
		if e.y[i] > 0 {
			dst[i] = v
		} else {
			dst[i] = v * (e.y[i] + 1)
		}
	}
	return dx
}

// leakyReLU applies the attention slope elementwise to a scalar.
func leakyReLU(v, slope float64) float64 {
	if v > 0 {
		return v
	}
	return v * slope
}

// leakyReLUGrad is the derivative of leakyReLU at the pre-activation v.
func leakyReLUGrad(v, slope float64) float64 {
	if v > 0 {
		return 1
	}
	return slope
}
