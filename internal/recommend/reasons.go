// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package recommend

import (
	"fmt"
	"strings"
)

// Embedding-similarity bands for the reason string.
const (
	bandHigh     = 0.85
	bandStrong   = 0.70
	bandModerate = 0.50
)

// reason composes the recommendation rationale from the embedding
// similarity band and the shared-tag overlap. Shared tags arrive
// ordered rarest first.
func reason(embSim float64, shared []string) string {
	var parts []string
	switch {
	case embSim > bandHigh:
		parts = append(parts, "highly similar solving pattern")
	case embSim > bandStrong:
		parts = append(parts, "strong structural similarity")
	case embSim > bandModerate:
		parts = append(parts, "related approach")
	default:
		parts = append(parts, "neighboring problem in embedding space")
	}

	switch len(shared) {
	case 0:
		parts = append(parts, "no overlapping tags")
	case 1:
		parts = append(parts, fmt.Sprintf("shares the %s concept", shared[0]))
	default:
		parts = append(parts, fmt.Sprintf("shares %d concepts led by %s", len(shared), shared[0]))
	}
	return strings.Join(parts, "; ")
}

// learningPath synthesizes the study descriptor from the shared-tag
// count: no overlap reads as exploration, a growing overlap as
// increasingly systematic practice.
func learningPath(shared []string) string {
	switch len(shared) {
	case 0:
		return "exploratory practice guided by solution-pattern similarity"
	case 1:
		return fmt.Sprintf("specialized practice on %s", shared[0])
	case 2:
		return fmt.Sprintf("linked-skill practice connecting %s and %s", shared[0], shared[1])
	default:
		return fmt.Sprintf("systematic practice across %s, %s and %d more",
			shared[0], shared[1], len(shared)-2)
	}
}
