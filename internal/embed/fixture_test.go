// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
)

// testDataset assembles a six-node snapshot with two tag communities
// (array problems 0..2, tree problems 3..4) and one untagged node.
func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Assemble(dataset.Inputs{
		Features: mat.NewDense(6, 4, []float64{
			1, 0, 0, 0.2,
			0, 1, 0, 0.4,
			0, 0, 1, 0.6,
			1, 1, 0, 0.8,
			0, 1, 1, 1.0,
			1, 0, 1, 1.2,
		}),
		Text: mat.NewDense(6, 5, []float64{
			0.1, 0.2, 0.3, 0.4, 0.5,
			0.5, 0.4, 0.3, 0.2, 0.1,
			0.2, 0.2, 0.2, 0.2, 0.2,
			0.9, 0.1, 0.0, 0.1, 0.9,
			0.0, 0.8, 0.1, 0.8, 0.0,
			0.3, 0.0, 0.7, 0.0, 0.3,
		}),
		Edges: [][2]int{{0, 1}, {1, 2}, {0, 2}, {3, 4}, {2, 3}, {5, 0}},
		RawTags: map[string][]string{
			"1": {"array", "hash-table"},
			"2": {"array", "two-pointers"},
			"3": {"array"},
			"4": {"tree", "dfs"},
			"5": {"tree"},
		},
		EntityIndex: map[string]int{
			"problem:1": 0,
			"problem:2": 1,
			"problem:3": 2,
			"problem:4": 3,
			"problem:5": 4,
			"problem:6": 5,
		},
		Titles: map[string]string{
			"1": "Two Sum",
			"2": "Three Sum",
			"3": "Four Sum",
			"4": "Binary Tree Paths",
			"5": "Path Sum",
			"6": "Random Notes",
		},
		IDPrefix: "problem:",
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return ds
}

// testEvalPairs resolve against testDataset titles; the last pair does
// not and exercises the drop counter.
func testEvalPairs() []dataset.EvalPair {
	return []dataset.EvalPair{
		{Query: "Two Sum", Target: "Three Sum"},
		{Query: "Two Sum", Target: "Four Sum"},
		{Query: "Binary Tree Paths", Target: "Path Sum"},
		{Query: "Unknown Problem", Target: "Two Sum"},
	}
}

// testTrainConfig keeps every objective active with shapes small enough
// for fast full-batch epochs.
func testTrainConfig() config.TrainConfig {
	return config.TrainConfig{
		Epochs:               8,
		LearningRate:         0.01,
		LearningRateMin:      0.001,
		ClipNorm:             5,
		Dropout:              0.1,
		Margin:               0.3,
		FocalGamma:           2,
		LabelSmoothing:       0.1,
		Temperature:          0.07,
		EvalEvery:            4,
		MineEvery:            3,
		MaxTripletsPerAnchor: 4,
		Patience:             60,
		CollapseThreshold:    1e-4,
		GraphLayers:          2,
		GraphHeads:           2,
		HeadDim:              4,
		HiddenDim:            10,
		EmbeddingDim:         8,
		Weights: config.LossWeights{
			Ranking:      1,
			Tags:         0.5,
			SupConStruct: 0.1,
			SupConTag:    0.1,
			Align:        0.1,
			Proxy:        0.1,
			Variance:     0.05,
			Center:       0.01,
			Cluster:      0.05,
		},
		CheckpointKeep: 3,
	}
}
