// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import "gonum.org/v1/gonum/mat"

// Alignment is the mean-squared error averaged over the three tower
// pairs (struct/tag, struct/text, tag/text), pushing the towers toward
// a shared representation. Gradients accumulate into the matching
// accumulators.
func Alignment(zs, zt, zx *mat.Dense, ds, dt, dx *mat.Dense) float64 {
	total := 0.0
	total += pairMSE(zs, zt, ds, dt)
	total += pairMSE(zs, zx, ds, dx)
	total += pairMSE(zt, zx, dt, dx)
	return total / 3
}

func pairMSE(a, b, da, db *mat.Dense) float64 {
	rows, cols := a.Dims()
	inv := 1 / float64(rows*cols)
	scale := 2 * inv / 3
	total := 0.0
	for i := 0; i < rows; i++ {
		ar := a.RawRowView(i)
		br := b.RawRowView(i)
		dar := da.RawRowView(i)
		dbr := db.RawRowView(i)
		for j := range ar {
			diff := ar[j] - br[j]
			total += diff * diff * inv
			dar[j] += diff * scale
			dbr[j] -= diff * scale
		}
	}
	return total
}
