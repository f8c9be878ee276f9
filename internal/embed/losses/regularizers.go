// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const stdEps = 1e-8

// Variance penalizes dimensions whose per-dimension standard deviation
// falls below one: mean over dims of max(0, 1 - std_d). Applied to the
// raw fused output so collapse shows up before normalization hides it.
func Variance(z *mat.Dense, dz *mat.Dense) float64 {
	rows, cols := z.Dims()
	if rows < 2 {
		return 0
	}
	n := float64(rows)

	means := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}

	stds := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	total := 0.0
	active := make([]bool, cols)
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] < 1 {
			total += 1 - stds[j]
			active[j] = true
		}
	}
	total /= float64(cols)

	invDN := 1 / (float64(cols) * n)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		g := dz.RawRowView(i)
		for j, v := range row {
			if active[j] {
				g[j] -= (v - means[j]) * invDN / (stds[j] + stdEps)
			}
		}
	}
	return total
}

// Center penalizes the squared norm of the mean row, keeping the cloud
// anchored at the origin.
func Center(z *mat.Dense, dz *mat.Dense) float64 {
	rows, cols := z.Dims()
	if rows == 0 {
		return 0
	}
	n := float64(rows)

	means := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		for j, v := range row {
			means[j] += v
		}
	}
	total := 0.0
	for j := range means {
		means[j] /= n
		total += means[j] * means[j]
	}

	for i := 0; i < rows; i++ {
		g := dz.RawRowView(i)
		for j := range g {
			g[j] += 2 * means[j] / n
		}
	}
	return total
}
