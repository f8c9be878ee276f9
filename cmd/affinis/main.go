// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package main is the entry point for the affinis command line tool.
//
// Affinis trains multi-task graph embeddings over a catalog of problems
// and serves hybrid similarity recommendations from the exported
// artifacts. One binary covers the whole lifecycle:
//
//	affinis train      # assemble the dataset, train the ensemble, export artifacts
//	affinis evaluate   # score an exported embedding with Hits@{1,3,5,10}
//	affinis recommend  # one-shot query against the exported artifacts
//	affinis serve      # HTTP API with live artifact reloading
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (AFFINIS_*)
//   - Config file (--config flag, AFFINIS_CONFIG, or config.yaml)
//   - Built-in defaults
//
// Command flags override the loaded configuration for the single run.
//
// # Signal Handling
//
// train and serve handle graceful shutdown on SIGINT and SIGTERM: train
// stops at the next epoch boundary, serve stops accepting connections
// and drains in-flight requests before exiting.
//
// # Port 6180
//
// The default port 6180 takes the leading digits of the golden ratio
// conjugate (0.6180...), the classic measure of agreeable proportion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/logging"
)

const configMetadataKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Fatal().Err(err).Msg("Command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "affinis",
		Usage: "Problem graph embeddings and similarity recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (also AFFINIS_CONFIG)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override logging.level (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Override logging.format (json, console)",
			},
		},
		Before:   setup,
		Metadata: map[string]interface{}{},
		Commands: []*cli.Command{
			trainCommand(),
			evaluateCommand(),
			recommendCommand(),
			serveCommand(),
		},
	}
}

// setup loads the layered configuration and initializes the global
// logger before any command action runs.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	c.App.Metadata[configMetadataKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configMetadataKey].(*config.Config)
}

// notifyContext derives a context canceled by SIGINT or SIGTERM,
// logging the first signal received.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
