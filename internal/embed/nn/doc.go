// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package nn implements the dense layers of the embedding towers with
// explicit forward and backward passes over gonum matrices.
//
// Every layer caches the activations its gradient needs during Forward
// and accumulates parameter gradients during Backward, returning the
// gradient with respect to its input. There is no computation graph or
// autograd; the trainer chains Backward calls in reverse composition
// order, exactly as the analytic derivatives are written here.
//
// Layers expose their parameters as flat Param views so one optimizer
// step updates every tensor in place.
package nn
