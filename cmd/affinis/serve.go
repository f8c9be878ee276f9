// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/affinelabs/affinis/internal/api"
	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/logging"
	"github.com/affinelabs/affinis/internal/recommend"
	"github.com/affinelabs/affinis/internal/supervisor"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the recommendation API from the exported artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override server.host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override server.port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	ctx, cancel := notifyContext(context.Background())
	defer cancel()

	provider := recommend.NewProvider()
	router := api.NewRouter(cfg, provider)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	artifactPath := cfg.Data.ExportPath(dataset.EmbeddingJSONName)
	tree.AddArtifactService(supervisor.NewReloadService(supervisor.ReloadServiceConfig{
		Path:     artifactPath,
		Interval: cfg.Recommend.ReloadInterval,
	}, provider, func() (*recommend.Engine, error) {
		return loadEngine(cfg)
	}))
	tree.AddAPIService(supervisor.NewHTTPService(server, treeCfg.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Str("artifact", artifactPath).
		Dur("reload_interval", cfg.Recommend.ReloadInterval).
		Msg("Starting Affinis supervisor tree")

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Affinis stopped gracefully")
	return nil
}

// loadEngine builds a serving engine from the exported artifacts: the
// label-side dataset plus the id-to-vector embedding export. The reload
// service calls this on every artifact change.
func loadEngine(cfg *config.Config) (*recommend.Engine, error) {
	ds, err := dataset.LoadLabels(cfg.Data)
	if err != nil {
		return nil, err
	}
	emb, err := ds.LoadEmbeddingJSON(cfg.Data.ExportPath(dataset.EmbeddingJSONName))
	if err != nil {
		return nil, err
	}
	bundle, err := recommend.NewBundle(ds, emb)
	if err != nil {
		return nil, err
	}
	return recommend.New(cfg.Recommend, bundle)
}
