// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/embed/checkpoint"
	"github.com/affinelabs/affinis/internal/embed/losses"
	"github.com/affinelabs/affinis/internal/embed/nn"
	"github.com/affinelabs/affinis/internal/logging"
	"github.com/affinelabs/affinis/internal/metrics"
)

// TrainResult is the outcome of one training run: the best-by-Hits@10
// normalized embedding and the weights that produced it.
type TrainResult struct {
	Seed         int64
	EpochsRun    int
	BestEpoch    int
	BestHits     map[int]float64
	Embedding    *mat.Dense
	Weights      map[string][]float64
	EarlyStopped bool
	FinalLoss    float64
}

// Trainer drives one seeded run over a fixed dataset. All randomness
// flows from the single rng created at construction.
type Trainer struct {
	cfg  config.TrainConfig
	ds   *dataset.Dataset
	eval *EvalSet
	log  zerolog.Logger

	seed  int64
	runID string
	rng   *rand.Rand

	model *Model
	graph *nn.Graph
	opt   *nn.Adam
	sched nn.CosineSchedule
	miner *Miner
	store *checkpoint.Store

	normStruct nn.L2Norm
	normTag    nn.L2Norm
	normText   nn.L2Norm
	normFusion nn.L2Norm

	proxies   *mat.Dense
	labels    []int
	tagged    []int
	positives [][]int
	members   [][]int

	triplets  []losses.Triplet
	sinceMine int
}

// NewTrainer builds the model and all static training state for one
// seed. A nil store disables on-disk checkpoints.
func NewTrainer(cfg config.TrainConfig, ds *dataset.Dataset, eval *EvalSet, store *checkpoint.Store, seed int64) *Trainer {
	rng := rand.New(rand.NewSource(seed))
	shape := ShapeFromConfig(cfg, ds)

	t := &Trainer{
		cfg:   cfg,
		ds:    ds,
		eval:  eval,
		seed:  seed,
		runID: "seed" + strconv.FormatInt(seed, 10),
		rng:   rng,
		model: NewModel(shape, rng),
		graph: nn.NewGraph(ds.NumNodes(), ds.Edges),
		opt:   nn.NewAdam(cfg.LearningRate),
		sched: nn.CosineSchedule{
			Base:  cfg.LearningRate,
			Min:   cfg.LearningRateMin,
			Total: cfg.Epochs,
		},
		store:     store,
		proxies:   losses.NewProxies(ds.NumTags(), shape.EmbeddingDim, rng),
		positives: losses.PositiveSets(ds.TagSets, ds.NumTags()),
		members:   losses.TagMembers(ds.TagSets, ds.NumTags()),
	}
	t.log = logging.With().
		Str("component", "trainer").
		Int64("seed", seed).
		Logger()

	t.miner = NewMiner(ds.TagSets, ds.NumTags(), cfg.MaxTripletsPerAnchor, rng)
	t.labels = dominantTags(ds)
	for i, tags := range ds.TagSets {
		if len(tags) > 0 {
			t.tagged = append(t.tagged, i)
		}
	}
	return t
}

// dominantTags picks each node's rarest tag (highest IDF); sorted tag
// sets make the lowest index win ties. Untagged nodes get -1.
func dominantTags(ds *dataset.Dataset) []int {
	labels := make([]int, ds.NumNodes())
	for i, tags := range ds.TagSets {
		labels[i] = -1
		best := math.Inf(-1)
		for _, tag := range tags {
			if ds.IDF[tag] > best {
				best = ds.IDF[tag]
				labels[i] = tag
			}
		}
	}
	return labels
}

// Train runs the full epoch loop and returns the best state observed.
// The context is checked between epochs.
func (t *Trainer) Train(ctx context.Context) (*TrainResult, error) {
	n := t.ds.NumNodes()
	d := t.model.Shape().EmbeddingDim
	w := t.cfg.Weights
	start := time.Now()

	t.log.Info().
		Int("nodes", n).
		Int("edges", t.graph.NumEdges()).
		Int("tags", t.ds.NumTags()).
		Int("params", nn.NumParams(t.model.Params())).
		Int("epochs", t.cfg.Epochs).
		Msg("training run starting")
	if t.eval.Empty() {
		t.log.Warn().Msg("no evaluation pairs resolved; snapshots track the latest epoch instead of Hits@10")
	} else if t.eval.Dropped > 0 {
		t.log.Warn().Int("dropped", t.eval.Dropped).Msg("evaluation pairs with unknown titles dropped")
	}

	result := &TrainResult{Seed: t.seed, BestEpoch: -1}
	bestHits10 := math.Inf(-1)
	params := t.model.Params()

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training canceled at epoch %d: %w", epoch, err)
		}

		lr := t.sched.LR(epoch)
		t.opt.SetLR(lr)

		t.model.SetTraining(true)
		out := t.model.Forward(t.graph, t.ds.Features, t.ds.TagMatrix, t.ds.Text)

		zStruct := t.normStruct.Forward(out.Struct)
		zTag := t.normTag.Forward(out.Tag)
		zText := t.normText.Forward(out.Text)
		zFusion := t.normFusion.Forward(out.Fusion)

		if t.triplets == nil || t.sinceMine >= t.cfg.MineEvery {
			t.triplets = t.miner.Mine(zFusion)
			t.sinceMine = 0
			metrics.MiningRefreshes.Inc()
			t.log.Debug().Int("epoch", epoch).Int("triplets", len(t.triplets)).Msg("triplets refreshed")
		}
		t.sinceMine++

		terms := make(map[string]float64, 10)
		dStructN := mat.NewDense(n, d, nil)
		dTagN := mat.NewDense(n, d, nil)
		dTextN := mat.NewDense(n, d, nil)
		dFusionN := mat.NewDense(n, d, nil)
		scratch := mat.NewDense(n, d, nil)

		terms["ranking"] = accumulate(dFusionN, scratch, w.Ranking,
			func(dst *mat.Dense) float64 { return losses.Ranking(zFusion, t.triplets, t.cfg.Margin, dst) })
		terms["supcon_struct"] = accumulate(dStructN, scratch, w.SupConStruct,
			func(dst *mat.Dense) float64 { return losses.SupCon(zStruct, t.positives, t.cfg.Temperature, dst) })
		terms["supcon_tag"] = accumulate(dTagN, scratch, w.SupConTag,
			func(dst *mat.Dense) float64 { return losses.SupCon(zTag, t.positives, t.cfg.Temperature, dst) })
		terms["cluster"] = accumulate(dFusionN, scratch, w.Cluster,
			func(dst *mat.Dense) float64 { return losses.ClusterCenter(zFusion, t.members, dst) })

		var proxyErr error
		terms["proxy"] = accumulate(dFusionN, scratch, w.Proxy, func(dst *mat.Dense) float64 {
			v, err := losses.ProxyNCA(zFusion, t.labels, t.proxies, dst)
			if err != nil {
				proxyErr = err
			}
			return v
		})
		if proxyErr != nil {
			return nil, fmt.Errorf("proxy loss: %w", proxyErr)
		}

		// Alignment spans three accumulators, so it bypasses the
		// single-target helper.
		dsA := mat.NewDense(n, d, nil)
		dtA := mat.NewDense(n, d, nil)
		dxA := mat.NewDense(n, d, nil)
		terms["align"] = losses.Alignment(zStruct, zTag, zText, dsA, dtA, dxA)
		weightedAdd(dStructN, dsA, w.Align)
		weightedAdd(dTagN, dtA, w.Align)
		weightedAdd(dTextN, dxA, w.Align)

		grads := TowerGrads{
			Struct: t.normStruct.Backward(dStructN),
			Tag:    t.normTag.Backward(dTagN),
			Text:   t.normText.Backward(dTextN),
			Fusion: t.normFusion.Backward(dFusionN),
		}

		terms["variance"] = accumulate(grads.Fusion, scratch, w.Variance,
			func(dst *mat.Dense) float64 { return losses.Variance(out.Fusion, dst) })
		terms["center"] = accumulate(grads.Fusion, scratch, w.Center,
			func(dst *mat.Dense) float64 { return losses.Center(out.Fusion, dst) })

		_, tagCols := out.TagLogits.Dims()
		dLogits := mat.NewDense(n, tagCols, nil)
		logitScratch := mat.NewDense(n, tagCols, nil)
		terms["tags"] = accumulate(dLogits, logitScratch, w.Tags,
			func(dst *mat.Dense) float64 {
				return losses.FocalTags(out.TagLogits, t.ds.TagMatrix, t.tagged, t.cfg.FocalGamma, t.cfg.LabelSmoothing, dst)
			})
		grads.TagLogits = dLogits

		t.logDegenerate(epoch)

		total := 0.0
		for name, weight := range w.Map() {
			total += weight * terms[name]
		}
		terms["total"] = total
		result.FinalLoss = total
		result.EpochsRun = epoch + 1

		nn.ZeroGrads(params)
		t.model.Backward(grads)
		preClip := nn.ClipGradNorm(params, t.cfg.ClipNorm)
		t.opt.Step(params)

		metrics.RecordEpoch(lr, terms)
		t.log.Debug().
			Int("epoch", epoch).
			Float64("loss", total).
			Float64("lr", lr).
			Float64("grad_norm", preClip).
			Int("triplets", len(t.triplets)).
			Msg("epoch complete")

		if epoch%t.cfg.EvalEvery == 0 {
			improved, hits := t.evaluate(ctx, epoch, result, &bestHits10)
			if improved {
				t.log.Info().
					Int("epoch", epoch).
					Float64("hits@10", hits[10]).
					Float64("loss", total).
					Msg("evaluation improved; snapshot taken")
			}
			if !t.eval.Empty() && epoch-result.BestEpoch > t.cfg.Patience {
				result.EarlyStopped = true
				metrics.EarlyStops.Inc()
				t.log.Info().
					Int("epoch", epoch).
					Int("best_epoch", result.BestEpoch).
					Int("patience", t.cfg.Patience).
					Msg("early stop: no Hits@10 improvement within patience")
				break
			}
		}
	}

	if result.Embedding == nil {
		// Epoch 0 always evaluates, so only a zero-epoch run lands here.
		return nil, fmt.Errorf("training run %s produced no snapshot", t.runID)
	}
	t.log.Info().
		Int("epochs_run", result.EpochsRun).
		Int("best_epoch", result.BestEpoch).
		Float64("best_hits@10", result.BestHits[10]).
		Bool("early_stopped", result.EarlyStopped).
		Dur("elapsed", time.Since(start)).
		Msg("training run finished")
	return result, nil
}

// evaluate runs an inference-mode forward pass, scores Hits@K, applies
// the collapse check and snapshots on improvement. With an empty eval
// set every evaluation counts as an improvement, so the latest state
// wins.
func (t *Trainer) evaluate(ctx context.Context, epoch int, result *TrainResult, bestHits10 *float64) (bool, map[int]float64) {
	t.model.SetTraining(false)
	out := t.model.Forward(t.graph, t.ds.Features, t.ds.TagMatrix, t.ds.Text)
	z := nn.NormalizeRows(out.Fusion)

	if spread := meanStd(z); spread < t.cfg.CollapseThreshold {
		metrics.CollapseWarnings.Inc()
		t.log.Warn().
			Int("epoch", epoch).
			Float64("mean_std", spread).
			Float64("threshold", t.cfg.CollapseThreshold).
			Msg("embedding collapse suspected; consider raising regularizer weights")
	}

	improved := false
	hits := map[int]float64{}
	if t.eval.Empty() {
		improved = true
	} else {
		hits = t.eval.Hits(z)
		metrics.RecordHits(hits)
		if hits[10] > *bestHits10 {
			*bestHits10 = hits[10]
			improved = true
		}
	}
	if !improved {
		return false, hits
	}

	result.BestEpoch = epoch
	result.BestHits = hits
	result.Embedding = z
	result.Weights = t.model.ExportWeights()

	if t.store != nil {
		snap := &checkpoint.Snapshot{
			RunID:     t.runID,
			Seed:      t.seed,
			Epoch:     epoch,
			HitsAt10:  hits[10],
			Weights:   result.Weights,
			Embedding: matRows(z),
			CreatedAt: time.Now().UTC(),
		}
		if version, err := t.store.Save(ctx, snap); err != nil {
			t.log.Error().Err(err).Int("epoch", epoch).Msg("checkpoint save failed")
		} else {
			metrics.CheckpointsWritten.Inc()
			t.log.Debug().Int("epoch", epoch).Int("version", version).Msg("checkpoint written")
			if err := t.store.Prune(ctx, t.runID, t.cfg.CheckpointKeep); err != nil {
				t.log.Warn().Err(err).Msg("checkpoint prune failed")
			}
		}
	}
	return true, hits
}

// logDegenerate notes loss terms that cannot contribute this epoch.
func (t *Trainer) logDegenerate(epoch int) {
	if len(t.triplets) == 0 {
		t.log.Debug().Int("epoch", epoch).Msg("ranking loss degenerate: no triplets")
	}
	if len(t.tagged) == 0 {
		t.log.Debug().Int("epoch", epoch).Msg("tag losses degenerate: no tagged nodes")
	}
}

// accumulate runs a loss into scratch, then folds the weighted gradient
// into dst. The scratch matrix is zeroed first so it can be shared.
func accumulate(dst, scratch *mat.Dense, weight float64, loss func(*mat.Dense) float64) float64 {
	scratch.Zero()
	value := loss(scratch)
	weightedAdd(dst, scratch, weight)
	return value
}

func weightedAdd(dst, src *mat.Dense, weight float64) {
	if weight == 0 {
		return
	}
	rows, _ := dst.Dims()
	for i := 0; i < rows; i++ {
		d := dst.RawRowView(i)
		s := src.RawRowView(i)
		for j := range d {
			d[j] += weight * s[j]
		}
	}
}

// meanStd is the mean per-dimension standard deviation, the collapse
// indicator.
func meanStd(z *mat.Dense) float64 {
	rows, cols := z.Dims()
	if rows < 2 {
		return 0
	}
	n := float64(rows)
	total := 0.0
	for j := 0; j < cols; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += z.At(i, j)
		}
		mean /= n
		variance := 0.0
		for i := 0; i < rows; i++ {
			d := z.At(i, j) - mean
			variance += d * d
		}
		total += math.Sqrt(variance / n)
	}
	return total / float64(cols)
}

// matRows copies a matrix into row slices for gob encoding.
func matRows(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}
