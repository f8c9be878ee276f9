// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// normEps guards rows whose norm is effectively zero.
const normEps = 1e-12

// L2Norm scales each row to unit Euclidean length. Rows with a norm
// below normEps are divided by normEps instead of their own norm.
type L2Norm struct {
	y     *mat.Dense
	norms []float64
}

func (l *L2Norm) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	l.y = mat.NewDense(rows, cols, nil)
	l.norms = resize(l.norms, rows)
	for i := 0; i < rows; i++ {
		src := x.RawRowView(i)
		dst := l.y.RawRowView(i)
		norm := 0.0
		for _, v := range src {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm < normEps {
			norm = normEps
		}
		l.norms[i] = norm
		for j, v := range src {
			dst[j] = v / norm
		}
	}
	out := mat.NewDense(rows, cols, nil)
	out.Copy(l.y)
	return out
}

// Backward applies dx = (dy - y·(y·dy)) / norm row by row.
func (l *L2Norm) Backward(dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		g := dy.RawRowView(i)
		y := l.y.RawRowView(i)
		dot := 0.0
		for j, v := range g {
			dot += v * y[j]
		}
		out := dx.RawRowView(i)
		for j, v := range g {
			out[j] = (v - y[j]*dot) / l.norms[i]
		}
	}
	return dx
}

// NormalizeRows returns a copy of m with every row scaled to unit length.
func NormalizeRows(m *mat.Dense) *mat.Dense {
	var l L2Norm
	return l.Forward(m)
}

// NormalizeVec scales v to unit length in place.
func NormalizeVec(v []float64) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm < normEps {
		norm = normEps
	}
	for i := range v {
		v[i] /= norm
	}
}
