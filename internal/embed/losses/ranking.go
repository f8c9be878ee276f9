// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import "gonum.org/v1/gonum/mat"

// Triplet pairs an anchor with one positive and one hard negative.
type Triplet struct {
	Anchor   int
	Positive int
	Negative int
}

// Ranking is the margin loss over triplet cosine similarities. Rows of
// z must be unit length so the dot product is the cosine. For each
// triplet the term is max(0, margin - cos(a,p) + cos(a,n)); the mean
// over triplets is returned and the gradient of active triplets is
// accumulated into dz.
func Ranking(z *mat.Dense, triplets []Triplet, margin float64, dz *mat.Dense) float64 {
	if len(triplets) == 0 {
		return 0
	}
	inv := 1 / float64(len(triplets))
	total := 0.0
	for _, t := range triplets {
		a := z.RawRowView(t.Anchor)
		p := z.RawRowView(t.Positive)
		n := z.RawRowView(t.Negative)

		var simAP, simAN float64
		for d := range a {
			simAP += a[d] * p[d]
			simAN += a[d] * n[d]
		}
		viol := margin - simAP + simAN
		if viol <= 0 {
			continue
		}
		total += viol

		da := dz.RawRowView(t.Anchor)
		dp := dz.RawRowView(t.Positive)
		dn := dz.RawRowView(t.Negative)
		for d := range a {
			da[d] += (n[d] - p[d]) * inv
			dp[d] -= a[d] * inv
			dn[d] += a[d] * inv
		}
	}
	return total * inv
}
