// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package losses implements the training objectives as pure functions.
// Each function returns the scalar term and accumulates its analytic
// gradient into a caller-owned matrix, so the trainer can sum weighted
// contributions from several terms into one backward pass. Degenerate
// inputs (no triplets, no tagged rows, no populated clusters) yield a
// zero term and leave the accumulator untouched.
package losses
