// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrLabelVocabulary reports a dominant-tag label index outside the
// proxy vocabulary. It is fatal because it means the labels and the
// tag vocabulary were built from different inputs.
var ErrLabelVocabulary = errors.New("label index outside proxy vocabulary")

// NewProxies draws one fixed unit vector per tag class from the run's
// seeded generator. Proxies are assigned, not trained.
func NewProxies(numTags, dim int, rng *rand.Rand) *mat.Dense {
	p := mat.NewDense(numTags, dim, nil)
	for i := 0; i < numTags; i++ {
		row := p.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		norm := 0.0
		for _, v := range row {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			norm = 1e-12
		}
		for j := range row {
			row[j] /= norm
		}
	}
	return p
}

// ProxyNCA pulls each labeled row toward its class proxy and away from
// the nearest other proxy: softplus(d²(z, p_label) - d²(z, p_nearest)).
// labels holds the dominant tag per node, -1 for untagged nodes. A
// label at or beyond the proxy count returns ErrLabelVocabulary; with
// fewer than two proxies the term is zero. Gradients accumulate into dz.
func ProxyNCA(z *mat.Dense, labels []int, proxies *mat.Dense, dz *mat.Dense) (float64, error) {
	numProxies, _ := proxies.Dims()
	for i, label := range labels {
		if label >= numProxies {
			return 0, fmt.Errorf("node %d label %d with %d proxies: %w", i, label, numProxies, ErrLabelVocabulary)
		}
	}
	if numProxies < 2 {
		return 0, nil
	}

	labeled := 0
	for _, label := range labels {
		if label >= 0 {
			labeled++
		}
	}
	if labeled == 0 {
		return 0, nil
	}

	inv := 1 / float64(labeled)
	total := 0.0
	for i, label := range labels {
		if label < 0 {
			continue
		}
		row := z.RawRowView(i)
		dPos := sqDist(row, proxies.RawRowView(label))

		nearest := -1
		dNeg := math.Inf(1)
		for t := 0; t < numProxies; t++ {
			if t == label {
				continue
			}
			if d := sqDist(row, proxies.RawRowView(t)); d < dNeg {
				dNeg = d
				nearest = t
			}
		}

		diff := dPos - dNeg
		total += softplus(diff) * inv

		s := sigmoid(diff) * 2 * inv
		pPos := proxies.RawRowView(label)
		pNeg := proxies.RawRowView(nearest)
		g := dz.RawRowView(i)
		for d := range g {
			g[d] += s * (pNeg[d] - pPos[d])
		}
	}
	return total, nil
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
