// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes activations with probability Rate during training and
// rescales the survivors by 1/(1-Rate) so inference needs no correction.
// Outside training it is the identity.
type Dropout struct {
	Rate     float64
	Training bool

	rng  *rand.Rand
	mask []float64
}

func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

func (d *Dropout) Forward(x *mat.Dense) *mat.Dense {
	if !d.Training || d.Rate <= 0 {
		d.mask = nil
		return x
	}
	rows, cols := x.Dims()
	if len(d.mask) != rows*cols {
		d.mask = make([]float64, rows*cols)
	}
	keep := 1 - d.Rate
	scale := 1 / keep
	y := mat.NewDense(rows, cols, nil)
	src := x.RawMatrix().Data
	dst := y.RawMatrix().Data
	for i, v := range src {
		if d.rng.Float64() < keep {
			d.mask[i] = scale
			dst[i] = v * scale
		} else {
			d.mask[i] = 0
		}
	}
	return y
}

func (d *Dropout) Backward(dy *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dy
	}
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	src := dy.RawMatrix().Data
	dst := dx.RawMatrix().Data
	for i, v := range src {
		dst[i] = v * d.mask[i]
	}
	return dx
}
