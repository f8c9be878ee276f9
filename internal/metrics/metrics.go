// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package metrics declares the Prometheus instrumentation for Affinis:
// API latency and throughput, recommendation serving, training progress,
// and artifact reloads. Collectors are registered with the default
// registry via promauto and exposed by the serve-mode /metrics endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinis_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinis_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation serving metrics
	RecommendationsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_recommendations_served_total",
			Help: "Total number of recommendation queries answered",
		},
	)

	RecommendationMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_recommendation_misses_total",
			Help: "Total number of queries naming an unknown title",
		},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affinis_recommendation_duration_seconds",
			Help:    "Duration of one recommendation query in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	// Training metrics
	TrainingEpochsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_training_epochs_total",
			Help: "Total number of training epochs completed",
		},
	)

	TrainingLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "affinis_training_loss",
			Help: "Most recent value of each weighted loss term",
		},
		[]string{"term"},
	)

	TrainingHits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "affinis_training_hits_at_k",
			Help: "Most recent evaluation Hits@K per cutoff",
		},
		[]string{"k"},
	)

	TrainingLearningRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinis_training_learning_rate",
			Help: "Current cosine-annealed learning rate",
		},
	)

	MiningRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_mining_refreshes_total",
			Help: "Total number of hard-negative mining refreshes",
		},
	)

	CheckpointsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_checkpoints_written_total",
			Help: "Total number of best-model checkpoints written",
		},
	)

	EarlyStops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_early_stops_total",
			Help: "Total number of training runs ended by patience",
		},
	)

	CollapseWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinis_collapse_warnings_total",
			Help: "Total number of embedding-collapse warnings emitted",
		},
	)

	// Artifact reload metrics (serve mode)
	ArtifactReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinis_artifact_reloads_total",
			Help: "Total number of artifact reload attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	EngineNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinis_engine_nodes",
			Help: "Number of nodes in the currently served embedding",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRecommendation records one answered query.
func RecordRecommendation(duration time.Duration) {
	RecommendationsServed.Inc()
	RecommendationDuration.Observe(duration.Seconds())
}

// RecordRecommendationMiss records a query for an unknown title.
func RecordRecommendationMiss() {
	RecommendationMisses.Inc()
}

// RecordEpoch records training progress after one epoch.
func RecordEpoch(lr float64, terms map[string]float64) {
	TrainingEpochsTotal.Inc()
	TrainingLearningRate.Set(lr)
	for term, value := range terms {
		TrainingLoss.WithLabelValues(term).Set(value)
	}
}

// RecordHits records one evaluation round.
func RecordHits(hits map[int]float64) {
	for k, rate := range hits {
		TrainingHits.WithLabelValues(strconv.Itoa(k)).Set(rate)
	}
}

// RecordArtifactReload records one reload attempt in serve mode.
func RecordArtifactReload(ok bool, nodes int) {
	if ok {
		ArtifactReloads.WithLabelValues("success").Inc()
		EngineNodes.Set(float64(nodes))
		return
	}
	ArtifactReloads.WithLabelValues("failure").Inc()
}
