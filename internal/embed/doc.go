// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package embed trains the multi-tower problem embedding.
//
// A graph-attention tower over the similarity edges, a tag tower over
// the multi-hot tag matrix and a text tower over auxiliary features are
// fused into one 128-dimensional vector per problem. Training combines
// nine weighted objectives (see internal/embed/losses) under Adam with
// cosine learning-rate annealing, periodic hard-negative mining and
// Hits@K evaluation with early stopping. The ensemble entry point runs
// several seeds and averages their best embeddings.
//
// Everything downstream of config is deterministic for a fixed seed:
// one rand source per run drives initialization, dropout, mining and
// proxy assignment.
package embed
