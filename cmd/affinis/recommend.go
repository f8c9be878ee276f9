// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/affinelabs/affinis/internal/recommend"
)

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "Query the exported artifacts once and print JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Problem title to query",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Override recommend.top_k",
			},
			&cli.Float64Flag{
				Name:  "alpha",
				Usage: "Override recommend.alpha (1 = pure embedding, 0 = pure tags)",
			},
			&cli.BoolFlag{
				Name:  "diversify",
				Usage: "Override recommend.diversify",
			},
			&cli.Float64Flag{
				Name:  "diversity-weight",
				Usage: "Override recommend.diversity_weight",
			},
		},
		Action: runRecommend,
	}
}

func runRecommend(c *cli.Context) error {
	cfg := configFrom(c)

	engine, err := loadEngine(cfg)
	if err != nil {
		return fmt.Errorf("load engine: %w", err)
	}

	req := recommend.Request{
		Title:           c.String("title"),
		TopK:            cfg.Recommend.TopK,
		Alpha:           cfg.Recommend.Alpha,
		Diversify:       cfg.Recommend.Diversify,
		DiversityWeight: cfg.Recommend.DiversityWeight,
	}
	if c.IsSet("top-k") {
		req.TopK = c.Int("top-k")
	}
	if c.IsSet("alpha") {
		req.Alpha = c.Float64("alpha")
	}
	if c.IsSet("diversify") {
		req.Diversify = c.Bool("diversify")
	}
	if c.IsSet("diversity-weight") {
		req.DiversityWeight = c.Float64("diversity-weight")
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(engine.Recommend(req))
}
