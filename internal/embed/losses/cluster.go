// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import "gonum.org/v1/gonum/mat"

// ClusterCenter measures, per tag, the mean squared distance of member
// rows from their own centroid, averaged over tags with at least two
// members. The centroid terms cancel in the gradient, leaving only the
// member-to-centroid pull. Gradients accumulate into dz.
func ClusterCenter(z *mat.Dense, members [][]int, dz *mat.Dense) float64 {
	_, cols := z.Dims()
	populated := 0
	for _, m := range members {
		if len(m) >= 2 {
			populated++
		}
	}
	if populated == 0 {
		return 0
	}

	invT := 1 / float64(populated)
	centroid := make([]float64, cols)
	total := 0.0
	for _, m := range members {
		if len(m) < 2 {
			continue
		}
		for j := range centroid {
			centroid[j] = 0
		}
		for _, i := range m {
			row := z.RawRowView(i)
			for j, v := range row {
				centroid[j] += v
			}
		}
		invM := 1 / float64(len(m))
		for j := range centroid {
			centroid[j] *= invM
		}

		for _, i := range m {
			row := z.RawRowView(i)
			g := dz.RawRowView(i)
			for j, v := range row {
				d := v - centroid[j]
				total += d * d * invM * invT
				g[j] += 2 * d * invM * invT
			}
		}
	}
	return total
}
