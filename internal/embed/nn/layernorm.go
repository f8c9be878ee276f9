// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-5

// LayerNorm normalizes each row to zero mean and unit variance, then
// applies the learned elementwise scale gamma and shift beta.
type LayerNorm struct {
	Dim int

	Gamma, Beta         []float64
	GradGamma, GradBeta []float64

	name   string
	xhat   *mat.Dense // cached normalized rows
	invStd []float64  // cached 1/sqrt(var+eps) per row
}

func NewLayerNorm(name string, dim int) *LayerNorm {
	ln := &LayerNorm{
		Dim:       dim,
		Gamma:     make([]float64, dim),
		Beta:      make([]float64, dim),
		GradGamma: make([]float64, dim),
		GradBeta:  make([]float64, dim),
		name:      name,
	}
	for i := range ln.Gamma {
		ln.Gamma[i] = 1
	}
	return ln
}

func (ln *LayerNorm) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	ln.xhat = mat.NewDense(rows, cols, nil)
	if len(ln.invStd) != rows {
		ln.invStd = make([]float64, rows)
	}
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(cols)
		variance := 0.0
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(cols)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		ln.invStd[i] = inv

		xh := ln.xhat.RawRowView(i)
		out := y.RawRowView(i)
		for j, v := range row {
			xh[j] = (v - mean) * inv
			out[j] = xh[j]*ln.Gamma[j] + ln.Beta[j]
		}
	}
	return y
}

// Backward follows the standard layer-norm gradient. With dxhat = dy*gamma:
//
//	dx = invStd * (dxhat - mean(dxhat) - xhat*mean(dxhat*xhat))
func (ln *LayerNorm) Backward(dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	n := float64(cols)
	for i := 0; i < rows; i++ {
		dyRow := dy.RawRowView(i)
		xh := ln.xhat.RawRowView(i)

		sumDxhat := 0.0
		sumDxhatXhat := 0.0
		for j, g := range dyRow {
			dxh := g * ln.Gamma[j]
			sumDxhat += dxh
			sumDxhatXhat += dxh * xh[j]
			ln.GradGamma[j] += g * xh[j]
			ln.GradBeta[j] += g
		}
		meanDxhat := sumDxhat / n
		meanDxhatXhat := sumDxhatXhat / n

		out := dx.RawRowView(i)
		for j, g := range dyRow {
			dxh := g * ln.Gamma[j]
			out[j] = ln.invStd[i] * (dxh - meanDxhat - xh[j]*meanDxhatXhat)
		}
	}
	return dx
}

func (ln *LayerNorm) Params() []Param {
	return []Param{
		{Name: ln.name + ".gamma", Value: ln.Gamma, Grad: ln.GradGamma},
		{Name: ln.name + ".beta", Value: ln.Beta, Grad: ln.GradBeta},
	}
}
