// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SupCon is the supervised contrastive loss over unit-length rows of z.
// positives[i] lists the nodes i may be pulled toward (shared-tag
// relation, precomputed with PositiveSets); the denominator spans every
// other row. Anchors with no positives are skipped; if none remain the
// term is zero. Gradients accumulate into dz.
func SupCon(z *mat.Dense, positives [][]int, tau float64, dz *mat.Dense) float64 {
	n, _ := z.Dims()
	anchors := 0
	for i := 0; i < n && i < len(positives); i++ {
		if len(positives[i]) > 0 {
			anchors++
		}
	}
	if anchors == 0 || n < 2 {
		return 0
	}

	// Pairwise similarity logits s_ij = (z_i . z_j) / tau.
	var s mat.Dense
	s.Mul(z, z.T())
	s.Scale(1/tau, &s)

	ds := mat.NewDense(n, n, nil)
	invM := 1 / float64(anchors)
	total := 0.0
	for i := 0; i < n && i < len(positives); i++ {
		pos := positives[i]
		if len(pos) == 0 {
			continue
		}
		row := s.RawRowView(i)

		maxLogit := math.Inf(-1)
		for j, v := range row {
			if j != i && v > maxLogit {
				maxLogit = v
			}
		}
		expSum := 0.0
		for j, v := range row {
			if j != i {
				expSum += math.Exp(v - maxLogit)
			}
		}
		lse := maxLogit + math.Log(expSum)

		invP := 1 / float64(len(pos))
		for _, p := range pos {
			total += -(row[p] - lse) * invP * invM
		}

		dsRow := ds.RawRowView(i)
		for j, v := range row {
			if j == i {
				continue
			}
			q := math.Exp(v-maxLogit) / expSum
			dsRow[j] = q * invM
		}
		for _, p := range pos {
			dsRow[p] -= invP * invM
		}
	}

	// s depends on z through both its row and column index.
	var dzRow, dzCol mat.Dense
	dzRow.Mul(ds, z)
	dzCol.Mul(ds.T(), z)
	dzRow.Add(&dzRow, &dzCol)
	dzRow.Scale(1/tau, &dzRow)
	dz.Add(dz, &dzRow)
	return total
}
