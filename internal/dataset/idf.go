// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package dataset

import "math"

// IDFWeights computes one inverse-document-frequency weight per tag:
// log(n / df), with the document frequency clamped to at least 1 so a
// tag observed on zero embedded nodes cannot divide by zero.
func IDFWeights(n int, docFreq []int) []float64 {
	weights := make([]float64, len(docFreq))
	for i, df := range docFreq {
		if df < 1 {
			df = 1
		}
		weights[i] = math.Log(float64(n) / float64(df))
	}
	return weights
}

// WeightedTagVector expands a node's tag set into a dense IDF-weighted
// vector over the vocabulary.
func WeightedTagVector(tagSet []int, idf []float64) []float64 {
	v := make([]float64, len(idf))
	for _, t := range tagSet {
		v[t] = idf[t]
	}
	return v
}
