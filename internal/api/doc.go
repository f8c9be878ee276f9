// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package api exposes the recommendation engine over HTTP using the Chi
// router.
//
// Route groups:
//
//	/api/v1/health   liveness and readiness probes, permissive rate limit
//	/api/v1          recommend and stats endpoints, per-IP rate limit
//	/metrics         Prometheus scrape endpoint
//
// All JSON endpoints answer with the APIResponse envelope: a success
// flag, the payload under data, a machine-readable error block on
// failure, and meta carrying the request ID and timing. Handlers read
// the engine through a recommend.Provider, so a request either sees a
// complete engine instance or a 503 while artifacts load.
package api
