// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/embed"
	"github.com/affinelabs/affinis/internal/embed/nn"
)

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Score an exported embedding with Hits@{1,3,5,10}",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "embedding",
				Usage: "Embedding export to score (.npy or id-to-vector .json; default: the configured JSON export)",
			},
			&cli.StringFlag{
				Name:  "eval-pairs",
				Usage: "Override data.eval_pairs_file",
			},
		},
		Action: runEvaluate,
	}
}

func runEvaluate(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("eval-pairs") {
		cfg.Data.EvalPairsFile = c.String("eval-pairs")
	}

	ds, err := dataset.LoadLabels(cfg.Data)
	if err != nil {
		return fmt.Errorf("load dataset labels: %w", err)
	}

	pairsPath := cfg.Data.EvalPairsPath()
	if pairsPath == "" {
		return fmt.Errorf("no evaluation pairs configured (data.eval_pairs_file)")
	}
	pairs, err := dataset.LoadEvalPairs(pairsPath)
	if err != nil {
		return fmt.Errorf("load evaluation pairs: %w", err)
	}
	set := embed.BuildEvalSet(pairs, ds.IndexByTitle)
	if set.Empty() {
		return fmt.Errorf("no evaluation pair in %s resolves against the catalog", pairsPath)
	}

	embPath := cfg.Data.ExportPath(dataset.EmbeddingJSONName)
	if c.IsSet("embedding") {
		embPath = c.String("embedding")
	}
	var emb *mat.Dense
	if strings.HasSuffix(embPath, ".npy") {
		emb, err = ds.LoadEmbeddingNPY(embPath)
	} else {
		emb, err = ds.LoadEmbeddingJSON(embPath)
	}
	if err != nil {
		return fmt.Errorf("load embedding: %w", err)
	}

	printHits(c.App.Writer, set, set.Hits(nn.NormalizeRows(emb)))
	return nil
}

func printHits(w io.Writer, set *embed.EvalSet, hits map[int]float64) {
	fmt.Fprintf(w, "queries %d  dropped %d\n", len(set.Queries), set.Dropped)
	for _, k := range embed.HitsKs {
		fmt.Fprintf(w, "hits@%-2d %.4f\n", k, hits[k])
	}
}
