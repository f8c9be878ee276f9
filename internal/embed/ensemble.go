// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/embed/checkpoint"
	"github.com/affinelabs/affinis/internal/logging"
)

// EnsembleResult carries the per-member training outcomes and the averaged
// embedding built from their best snapshots.
type EnsembleResult struct {
	Members []*TrainResult

	// Embedding is the element-wise mean of the member best embeddings.
	// Member snapshots are row-normalized, so the mean is not; consumers
	// re-normalize rows before computing cosine similarities.
	Embedding *mat.Dense
}

// TrainEnsemble trains cfg.Ensemble.Seeds independent members with seeds
// base_seed+i and averages their best embeddings element-wise. Averaging
// reduces seed variance without retraining.
//
// Members run sequentially unless cfg.Ensemble.Parallelism > 1, in which
// case they run on an ants pool. Each member owns its rng, model, and
// mining state, and results are keyed by member index, so parallel runs
// produce the same ensemble as sequential ones.
func TrainEnsemble(ctx context.Context, cfg *config.Config, ds *dataset.Dataset, eval *EvalSet, store *checkpoint.Store) (*EnsembleResult, error) {
	n := cfg.Ensemble.Seeds
	if n < 1 {
		n = 1
	}

	log := logging.With().Str("component", "ensemble").Logger()
	log.Info().
		Int("members", n).
		Int64("base_seed", cfg.Ensemble.BaseSeed).
		Int("parallelism", cfg.Ensemble.Parallelism).
		Msg("starting ensemble training")

	results := make([]*TrainResult, n)
	errs := make([]error, n)
	runMember := func(i int) {
		seed := cfg.Ensemble.BaseSeed + int64(i)
		results[i], errs[i] = NewTrainer(cfg.Train, ds, eval, store, seed).Train(ctx)
	}

	if cfg.Ensemble.Parallelism > 1 {
		pool, err := ants.NewPool(cfg.Ensemble.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("create ensemble pool: %w", err)
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				runMember(i)
			}); err != nil {
				wg.Done()
				errs[i] = fmt.Errorf("submit member %d: %w", i, err)
			}
		}
		wg.Wait()
	} else {
		for i := 0; i < n; i++ {
			runMember(i)
			if errs[i] != nil {
				break
			}
		}
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("ensemble member %d (seed %d): %w", i, cfg.Ensemble.BaseSeed+int64(i), err)
		}
	}

	rows, cols := results[0].Embedding.Dims()
	avg := mat.NewDense(rows, cols, nil)
	for i, res := range results {
		r, c := res.Embedding.Dims()
		if r != rows || c != cols {
			return nil, fmt.Errorf("ensemble member %d embedding is %dx%d, want %dx%d", i, r, c, rows, cols)
		}
		avg.Add(avg, res.Embedding)
		log.Info().
			Int("member", i).
			Int64("seed", res.Seed).
			Int("best_epoch", res.BestEpoch).
			Float64("best_hits@10", res.BestHits[10]).
			Bool("early_stopped", res.EarlyStopped).
			Msg("ensemble member finished")
	}
	avg.Scale(1.0/float64(n), avg)

	log.Info().Int("members", n).Int("nodes", rows).Int("dim", cols).Msg("ensemble training complete")
	return &EnsembleResult{Members: results, Embedding: avg}, nil
}
