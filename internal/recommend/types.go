// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package recommend

// Request is a fully resolved recommendation query. Callers (API
// handler, CLI) apply configuration defaults before building one; the
// engine takes the values literally apart from range clamping.
type Request struct {
	Title           string
	TopK            int
	Alpha           float64
	Diversify       bool
	DiversityWeight float64
}

// Recommendation is one ranked result. It carries everything a caller
// needs to render a card without further lookups.
type Recommendation struct {
	Title string `json:"title"`
	// Score is the hybrid blend of the two similarities.
	Score        float64  `json:"score"`
	EmbeddingSim float64  `json:"embedding_similarity"`
	TagSim       float64  `json:"tag_similarity"`
	SharedTags   []string `json:"shared_tags"`
	LearningPath string   `json:"learning_path"`
	Reason       string   `json:"reason"`
}

// Response is the structured outcome of one query. An unknown title is
// a miss, not an error: Found is false and Suggestions carries up to
// the configured number of near-matching titles.
type Response struct {
	Query           string           `json:"query"`
	Found           bool             `json:"found"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Suggestions     []string         `json:"suggestions,omitempty"`
}

// Stats summarizes one engine instance and its query counters.
type Stats struct {
	Nodes        int   `json:"nodes"`
	Tags         int   `json:"tags"`
	Dim          int   `json:"dim"`
	DegradedText bool  `json:"degraded_text"`
	Queries      int64 `json:"queries"`
	Misses       int64 `json:"misses"`
}
