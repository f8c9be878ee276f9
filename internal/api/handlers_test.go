// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package api

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/recommend"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            6180,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Recommend: testRecommendDefaults(),
	}
}

// testEngine builds a four-problem catalog with two-dimensional
// embeddings. "Random Notes" carries no tags.
func testEngine(t *testing.T, cfg *config.Config) *recommend.Engine {
	t.Helper()

	emb := mat.NewDense(4, 2, []float64{
		1, 0,
		0.8, 0.6,
		0, 1,
		-1, 0,
	})
	bundle := &recommend.Bundle{
		Embedding: emb,
		Titles:    []string{"Two Sum", "Three Sum", "Binary Tree Paths", "Random Notes"},
		IndexByTitle: map[string]int{
			"Two Sum": 0, "Three Sum": 1, "Binary Tree Paths": 2, "Random Notes": 3,
		},
		TagSets: [][]int{{0, 1}, {0}, {2}, {}},
		Vocab:   []string{"array", "hash-table", "tree"},
		IDF:     []float64{math.Log(2), math.Log(4), math.Log(4)},
	}

	engine, err := recommend.New(cfg.Recommend, bundle)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine
}

// testServer assembles the full router. With ready false the provider
// holds no engine, mimicking serve mode before artifacts load.
func testServer(t *testing.T, ready bool) http.Handler {
	t.Helper()

	cfg := testConfig()
	provider := recommend.NewProvider()
	if ready {
		provider.Swap(testEngine(t, cfg))
	}
	return NewRouter(cfg, provider).Setup()
}

func postRecommend(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeRecommendData(t *testing.T, resp APIResponse) recommend.Response {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var out recommend.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode recommend response: %v", err)
	}
	return out
}

func TestRecommendEndpoint(t *testing.T) {
	srv := testServer(t, true)

	rec := postRecommend(t, srv, `{"title":"Two Sum"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}

	out := decodeRecommendData(t, resp)
	if out.Query != "Two Sum" || !out.Found {
		t.Fatalf("query/found = %q/%v", out.Query, out.Found)
	}
	if len(out.Recommendations) != 3 {
		t.Fatalf("recommendations = %d, want all 3 candidates", len(out.Recommendations))
	}
	if out.Recommendations[0].Title != "Three Sum" {
		t.Errorf("top recommendation = %q, want Three Sum", out.Recommendations[0].Title)
	}
	top := out.Recommendations[0]
	if math.Abs(top.EmbeddingSim-0.8) > 1e-9 {
		t.Errorf("embedding_similarity = %v, want 0.8", top.EmbeddingSim)
	}
	if len(top.SharedTags) != 1 || top.SharedTags[0] != "array" {
		t.Errorf("shared_tags = %v, want [array]", top.SharedTags)
	}
	if top.LearningPath == "" || top.Reason == "" {
		t.Errorf("learning_path/reason empty: %+v", top)
	}
}

func TestRecommendEndpointAppliesConfigDefaults(t *testing.T) {
	srv := testServer(t, true)

	// Explicit top_k 1 wins over the configured 5.
	rec := postRecommend(t, srv, `{"title":"Two Sum","top_k":1}`)
	out := decodeRecommendData(t, decodeEnvelope(t, rec))
	if len(out.Recommendations) != 1 {
		t.Errorf("explicit top_k: recommendations = %d, want 1", len(out.Recommendations))
	}

	// alpha 1 makes the score pure embedding similarity.
	rec = postRecommend(t, srv, `{"title":"Two Sum","top_k":1,"alpha":1}`)
	out = decodeRecommendData(t, decodeEnvelope(t, rec))
	top := out.Recommendations[0]
	if math.Abs(top.Score-top.EmbeddingSim) > 1e-12 {
		t.Errorf("alpha=1 score = %v, want embedding similarity %v", top.Score, top.EmbeddingSim)
	}
}

func TestRecommendEndpointMiss(t *testing.T) {
	srv := testServer(t, true)

	rec := postRecommend(t, srv, `{"title":"two sum"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Fatalf("envelope = %+v", resp)
	}

	details, ok := resp.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details = %#v, want object", resp.Error.Details)
	}
	suggestions, ok := details["suggestions"].([]interface{})
	if !ok || len(suggestions) == 0 {
		t.Fatalf("suggestions = %#v, want non-empty", details["suggestions"])
	}
	found := false
	for _, s := range suggestions {
		if s == "Two Sum" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions %v missing Two Sum", suggestions)
	}
}

func TestRecommendEndpointInvalidJSON(t *testing.T) {
	srv := testServer(t, true)

	rec := postRecommend(t, srv, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestRecommendEndpointValidation(t *testing.T) {
	srv := testServer(t, true)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{}`},
		{"empty title", `{"title":""}`},
		{"alpha out of range", `{"title":"Two Sum","alpha":1.5}`},
		{"top_k out of range", `{"title":"Two Sum","top_k":100000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRecommend(t, srv, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
				t.Errorf("envelope = %+v", resp)
			}
		})
	}
}

func TestRecommendEndpointNotReady(t *testing.T) {
	srv := testServer(t, false)

	rec := postRecommend(t, srv, `{"title":"Two Sum"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t, true)

	// Serve one hit and one miss so the counters move.
	postRecommend(t, srv, `{"title":"Two Sum"}`)
	postRecommend(t, srv, `{"title":"nope"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var stats recommend.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Nodes != 4 || stats.Tags != 3 || stats.Dim != 2 {
		t.Errorf("stats = %+v, want 4 nodes, 3 tags, dim 2", stats)
	}
	if stats.Queries != 2 || stats.Misses != 1 {
		t.Errorf("counters = %d queries %d misses, want 2/1", stats.Queries, stats.Misses)
	}
}

func TestStatsEndpointNotReady(t *testing.T) {
	srv := testServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthLive(t *testing.T) {
	srv := testServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("liveness status = %d, want 200 even before artifacts load", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["alive"] != true {
		t.Errorf("data = %#v, want alive true", resp.Data)
	}
}

func TestHealthReady(t *testing.T) {
	for _, ready := range []bool{true, false} {
		srv := testServer(t, ready)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		wantStatus := http.StatusOK
		if !ready {
			wantStatus = http.StatusServiceUnavailable
		}
		if rec.Code != wantStatus {
			t.Errorf("ready=%v status = %d, want %d", ready, rec.Code, wantStatus)
		}
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	srv := testServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	srv := testServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommend", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeMethodNotAllowed {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "affinis_recommendations_served_total") {
		t.Error("scrape output missing affinis collectors")
	}
}
