// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package supervisor runs serve mode under Suture process supervision.
//
// The tree has two child supervisors below the root:
//
//	artifacts: the reload service that watches the exported embedding
//	           and swaps fresh engine instances into the provider
//	api:       the HTTP server
//
// The split isolates failures. A crashing reload loop is restarted
// with backoff while the HTTP server keeps answering from the last
// good engine; the server restarting does not interrupt artifact
// watching. Supervisor events are logged through sutureslog into the
// zerolog bridge, so restarts and backoffs appear in the structured
// log like everything else.
package supervisor
