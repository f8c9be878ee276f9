// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// probEps keeps log terms finite at saturated sigmoids.
const probEps = 1e-12

// FocalTags is the focal binary cross-entropy between tag logits and
// label-smoothed multi-hot targets, restricted to the rows listed in
// tagged. Smoothing maps positive targets to 1-smoothing and negative
// targets to smoothing. The focusing exponent gamma down-weights
// well-classified entries. Returns the mean over tagged rows and all
// tag columns; gradients accumulate into dLogits.
func FocalTags(logits, tags *mat.Dense, tagged []int, gamma, smoothing float64, dLogits *mat.Dense) float64 {
	if len(tagged) == 0 {
		return 0
	}
	_, cols := logits.Dims()
	inv := 1 / float64(len(tagged)*cols)
	total := 0.0
	for _, i := range tagged {
		x := logits.RawRowView(i)
		y := tags.RawRowView(i)
		g := dLogits.RawRowView(i)
		for j := range x {
			t := smoothing
			if y[j] > 0.5 {
				t = 1 - smoothing
			}
			p := sigmoid(x[j])
			pc := clampProb(p)
			qc := clampProb(1 - p)

			posMod := math.Pow(1-p, gamma)
			negMod := math.Pow(p, gamma)
			total += -(t*posMod*math.Log(pc) + (1-t)*negMod*math.Log(qc)) * inv

			// d/dx of the focal term, with dp/dx = p(1-p) folded in.
			grad := t*gamma*p*posMod*math.Log(pc) -
				t*(1-p)*posMod -
				(1-t)*gamma*(1-p)*negMod*math.Log(qc) +
				(1-t)*p*negMod
			g[j] += grad * inv
		}
	}
	return total
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clampProb(p float64) float64 {
	if p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}
