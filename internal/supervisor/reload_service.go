// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/affinelabs/affinis/internal/logging"
	"github.com/affinelabs/affinis/internal/metrics"
	"github.com/affinelabs/affinis/internal/recommend"
)

// LoadFunc builds a fresh engine from the artifacts on disk. The serve
// command supplies one that reads the dataset and the exported
// embedding.
type LoadFunc func() (*recommend.Engine, error)

// ReloadServiceConfig holds artifact watching configuration.
type ReloadServiceConfig struct {
	// Path is the artifact file whose modification time is polled.
	Path string

	// Interval between polls. Default: 1m
	Interval time.Duration
}

// ReloadService watches the exported embedding artifact and swaps a
// freshly built engine into the provider whenever it changes. The first
// successful load makes the API ready; a failed load or a missing file
// leaves the previous engine serving and retries on the next tick.
type ReloadService struct {
	config   ReloadServiceConfig
	provider *recommend.Provider
	load     LoadFunc
	logger   zerolog.Logger
	name     string

	// lastMod is the modification time of the last successful load.
	lastMod time.Time
}

// NewReloadService creates the artifact reload service.
func NewReloadService(config ReloadServiceConfig, provider *recommend.Provider, load LoadFunc) *ReloadService {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &ReloadService{
		config:   config,
		provider: provider,
		load:     load,
		logger:   logging.WithComponent("reload"),
		name:     "artifact-reload",
	}
}

// Serve implements suture.Service. One check runs immediately so a
// present artifact makes the server ready without waiting out the first
// interval.
func (s *ReloadService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("path", s.config.Path).
		Dur("interval", s.config.Interval).
		Msg("artifact reload service starting")

	s.check()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("artifact reload service shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.check()
		}
	}
}

// check reloads the engine when the watched file is newer than the last
// successful load. lastMod only advances on success, so failures are
// retried on the next tick even if the file does not change again.
func (s *ReloadService) check() {
	info, err := os.Stat(s.config.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.config.Path).Msg("artifacts not present yet")
		} else {
			s.logger.Warn().Err(err).Str("path", s.config.Path).Msg("artifact stat failed")
		}
		return
	}

	mod := info.ModTime()
	if !mod.After(s.lastMod) {
		return
	}

	engine, err := s.load()
	if err != nil {
		metrics.RecordArtifactReload(false, 0)
		s.logger.Warn().Err(err).Msg("artifact reload failed, keeping previous engine")
		return
	}

	s.provider.Swap(engine)
	s.lastMod = mod

	stats := engine.Stats()
	metrics.RecordArtifactReload(true, stats.Nodes)
	s.logger.Info().
		Time("modified", mod).
		Int("nodes", stats.Nodes).
		Int("dim", stats.Dim).
		Msg("recommendation engine reloaded")
}

// String implements fmt.Stringer; suture uses it in event logs.
func (s *ReloadService) String() string {
	return s.name
}
