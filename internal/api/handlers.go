// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/logging"
	"github.com/affinelabs/affinis/internal/recommend"
)

// maxRequestBody caps the POST body size. Recommendation requests are a
// handful of fields, so 64 KiB leaves ample headroom.
const maxRequestBody = 64 << 10

// Handler carries the HTTP endpoint implementations.
type Handler struct {
	cfg       *config.Config
	provider  *recommend.Provider
	startTime time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(cfg *config.Config, provider *recommend.Provider) *Handler {
	return &Handler{
		cfg:       cfg,
		provider:  provider,
		startTime: time.Now(),
	}
}

// Recommend handles POST /api/v1/recommend.
// The body is a RecommendRequest; omitted knobs fall back to the
// configured defaults. An unknown title answers 404 with near-match
// suggestions in the error details.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	engine, ok := h.provider.Get()
	if !ok {
		rw.ServiceUnavailable("Recommendation engine is still loading artifacts")
		return
	}

	var req RecommendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body: " + err.Error())
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	resp := engine.Recommend(req.resolve(&h.cfg.Recommend))
	if !resp.Found {
		logging.Ctx(r.Context()).Debug().
			Str("component", "api").
			Str("title", resp.Query).
			Int("suggestions", len(resp.Suggestions)).
			Msg("recommendation query missed catalog")
		rw.NotFoundWithDetails(
			fmt.Sprintf("Problem title %q is not in the catalog", resp.Query),
			map[string]interface{}{"suggestions": resp.Suggestions},
		)
		return
	}

	rw.Success(resp)
}

// Stats handles GET /api/v1/stats, reporting catalog dimensions and
// query counters of the live engine instance.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	engine, ok := h.provider.Get()
	if !ok {
		rw.ServiceUnavailable("Recommendation engine is still loading artifacts")
		return
	}

	rw.Success(engine.Stats())
}

// HealthLive handles GET /api/v1/health/live.
// Answers 200 whenever the process is up, regardless of artifact state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready.
// Ready means a complete engine instance is swapped in; before that the
// probe answers 503 so load balancers hold traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.provider.Ready() {
		rw.ErrorWithDetails(
			http.StatusServiceUnavailable,
			ErrCodeServiceUnavailable,
			"Recommendation engine is still loading artifacts",
			map[string]interface{}{
				"engine_loaded": false,
				"uptime":        time.Since(h.startTime).Seconds(),
			},
		)
		return
	}

	rw.Success(map[string]interface{}{
		"engine_loaded": true,
		"uptime":        time.Since(h.startTime).Seconds(),
	})
}
