// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package recommend serves hybrid similarity queries over a trained
// problem embedding.
//
// An Engine is built once from a Bundle (embedding matrix, title maps,
// tag sets, IDF table) and is immutable afterwards: embedding rows and
// IDF-weighted tag vectors are L2-normalized at load, so each query is
// a lock-free scan of dot products. The hybrid score blends the two
// similarities:
//
//	score = alpha*cos(embedding) + (1-alpha)*cos(idf tags)
//
// Untagged nodes have a zero tag vector and therefore tag similarity 0
// against every other node. Optional MMR diversification reranks the
// top candidates (see the reranking subpackage). Unknown titles return
// a structured miss carrying fuzzy title suggestions, never an error.
//
// Retraining never mutates a live engine: a fresh instance is built
// from the new artifacts and published through a Provider, which hands
// out the current engine with a single atomic load.
package recommend
