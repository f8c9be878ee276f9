// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/embed"
	"github.com/affinelabs/affinis/internal/embed/checkpoint"
	"github.com/affinelabs/affinis/internal/embed/nn"
	"github.com/affinelabs/affinis/internal/logging"
)

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train the embedding ensemble and export serving artifacts",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "epochs",
				Usage: "Override train.epochs",
			},
			&cli.IntFlag{
				Name:  "seeds",
				Usage: "Override ensemble.seeds",
			},
			&cli.Int64Flag{
				Name:  "base-seed",
				Usage: "Override ensemble.base_seed",
			},
			&cli.IntFlag{
				Name:  "parallelism",
				Usage: "Override ensemble.parallelism",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Override data.export_dir for the artifact exports",
			},
			&cli.StringFlag{
				Name:  "checkpoint-dir",
				Usage: "Override train.checkpoint_dir (empty disables snapshots)",
			},
		},
		Action: runTrain,
	}
}

func runTrain(c *cli.Context) error {
	cfg := configFrom(c)
	applyTrainFlags(c, cfg)

	ctx, cancel := notifyContext(context.Background())
	defer cancel()

	ds, err := dataset.Load(cfg.Data)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	eval, err := loadEvalSet(cfg, ds)
	if err != nil {
		return err
	}

	var store *checkpoint.Store
	if cfg.Train.CheckpointDir != "" {
		if store, err = checkpoint.NewStore(cfg.Train.CheckpointDir); err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
	}

	result, err := embed.TrainEnsemble(ctx, cfg, ds, eval, store)
	if err != nil {
		return fmt.Errorf("train ensemble: %w", err)
	}

	npyPath := cfg.Data.ExportPath(dataset.EmbeddingNPYName)
	jsonPath := cfg.Data.ExportPath(dataset.EmbeddingJSONName)
	if err := ds.ExportEmbedding(npyPath, jsonPath, result.Embedding); err != nil {
		return fmt.Errorf("export embedding: %w", err)
	}
	logging.Info().
		Str("npy", npyPath).
		Str("json", jsonPath).
		Msg("Embedding artifacts exported")

	if !eval.Empty() {
		printHits(c.App.Writer, eval, eval.Hits(nn.NormalizeRows(result.Embedding)))
	}
	return nil
}

func applyTrainFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("epochs") {
		cfg.Train.Epochs = c.Int("epochs")
	}
	if c.IsSet("seeds") {
		cfg.Ensemble.Seeds = c.Int("seeds")
	}
	if c.IsSet("base-seed") {
		cfg.Ensemble.BaseSeed = c.Int64("base-seed")
	}
	if c.IsSet("parallelism") {
		cfg.Ensemble.Parallelism = c.Int("parallelism")
	}
	if c.IsSet("export-dir") {
		cfg.Data.ExportDir = c.String("export-dir")
	}
	if c.IsSet("checkpoint-dir") {
		cfg.Train.CheckpointDir = c.String("checkpoint-dir")
	}
}

// loadEvalSet resolves the configured evaluation pairs, tolerating an
// absent file: catalogs without curated pairs still train, they just
// keep the latest snapshot instead of the best-by-Hits@10 one.
func loadEvalSet(cfg *config.Config, ds *dataset.Dataset) (*embed.EvalSet, error) {
	path := cfg.Data.EvalPairsPath()
	if path == "" {
		return &embed.EvalSet{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Str("path", path).Msg("Evaluation pairs file not found, training without Hits@K selection")
		return &embed.EvalSet{}, nil
	}

	pairs, err := dataset.LoadEvalPairs(path)
	if err != nil {
		return nil, fmt.Errorf("load evaluation pairs: %w", err)
	}
	set := embed.BuildEvalSet(pairs, ds.IndexByTitle)
	if set.Dropped > 0 {
		logging.Warn().
			Int("dropped", set.Dropped).
			Int("kept", len(set.Queries)).
			Msg("Evaluation pairs with unknown titles were dropped")
	}
	return set, nil
}
