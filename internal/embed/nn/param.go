// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import "math"

// Param is a flat view of one parameter tensor and its gradient
// accumulator. Value and Grad alias the layer's storage, so optimizer
// updates mutate the layer in place.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

// ZeroGrads clears every gradient accumulator before a backward pass.
func ZeroGrads(params []Param) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// GradNorm returns the global L2 norm across all parameter gradients.
func GradNorm(params []Param) float64 {
	sum := 0.0
	for _, p := range params {
		for _, g := range p.Grad {
			sum += g * g
		}
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients so their global norm does not
// exceed maxNorm, and returns the pre-clip norm.
func ClipGradNorm(params []Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if norm <= maxNorm || norm == 0 {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] *= scale
		}
	}
	return norm
}

// NumParams counts the scalar parameters across the slice.
func NumParams(params []Param) int {
	n := 0
	for _, p := range params {
		n += len(p.Value)
	}
	return n
}
