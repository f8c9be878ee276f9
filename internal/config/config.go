// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package config provides layered configuration for Affinis: built-in
// defaults, an optional YAML file, and environment variable overrides,
// loaded through koanf v2 and validated before use.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the root configuration for all Affinis commands.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	Train     TrainConfig     `koanf:"train"`
	Ensemble  EnsembleConfig  `koanf:"ensemble"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// LoggingConfig controls the global zerolog logger.
type LoggingConfig struct {
	// Level is the minimum log level (trace..panic).
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	// Format selects json or console output.
	Format string `koanf:"format" validate:"oneof=json console"`
	// Caller includes file:line in each event.
	Caller bool `koanf:"caller"`
}

// ServerConfig controls the serve-mode HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// DataConfig locates the dataset artifacts. File fields that are not
// absolute paths are resolved against Dir.
type DataConfig struct {
	Dir             string `koanf:"dir" validate:"required"`
	FeaturesFile    string `koanf:"features_file" validate:"required"`
	EdgesFile       string `koanf:"edges_file" validate:"required"`
	TagsFile        string `koanf:"tags_file" validate:"required"`
	EntityIndexFile string `koanf:"entity_index_file" validate:"required"`
	TitlesFile      string `koanf:"titles_file" validate:"required"`
	// TextFeaturesFile is optional; when empty the tag matrix doubles as
	// the text feature matrix (degraded text mode).
	TextFeaturesFile string `koanf:"text_features_file"`
	EvalPairsFile    string `koanf:"eval_pairs_file"`
	// IDPrefix namespaces raw node ids before entity-index lookups.
	IDPrefix string `koanf:"id_prefix"`
	// ExportDir receives the trained embedding artifacts.
	ExportDir string `koanf:"export_dir"`
}

// FeaturesPath returns the resolved node feature file path.
func (d DataConfig) FeaturesPath() string { return d.resolve(d.FeaturesFile) }

// EdgesPath returns the resolved edge list file path.
func (d DataConfig) EdgesPath() string { return d.resolve(d.EdgesFile) }

// TagsPath returns the resolved tag-label file path.
func (d DataConfig) TagsPath() string { return d.resolve(d.TagsFile) }

// EntityIndexPath returns the resolved entity-index file path.
func (d DataConfig) EntityIndexPath() string { return d.resolve(d.EntityIndexFile) }

// TitlesPath returns the resolved id-to-title file path.
func (d DataConfig) TitlesPath() string { return d.resolve(d.TitlesFile) }

// TextFeaturesPath returns the resolved text feature file path, or ""
// when no text features are configured.
func (d DataConfig) TextFeaturesPath() string {
	if d.TextFeaturesFile == "" {
		return ""
	}
	return d.resolve(d.TextFeaturesFile)
}

// EvalPairsPath returns the resolved evaluation pairs file path, or ""
// when none is configured.
func (d DataConfig) EvalPairsPath() string {
	if d.EvalPairsFile == "" {
		return ""
	}
	return d.resolve(d.EvalPairsFile)
}

// ExportPath resolves a file name against the export directory.
func (d DataConfig) ExportPath(name string) string {
	dir := d.ExportDir
	if dir == "" {
		dir = d.Dir
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func (d DataConfig) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// TrainConfig holds every hyperparameter of one training run.
type TrainConfig struct {
	Epochs       int     `koanf:"epochs" validate:"gte=1"`
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`
	// LearningRateMin is the floor of the cosine annealing schedule.
	LearningRateMin float64 `koanf:"learning_rate_min" validate:"gte=0"`
	ClipNorm        float64 `koanf:"clip_norm" validate:"gt=0"`
	Dropout         float64 `koanf:"dropout" validate:"gte=0,lt=1"`

	// Margin is the ranking-loss similarity margin.
	Margin float64 `koanf:"margin" validate:"gt=0"`
	// FocalGamma is the focusing exponent of the tag focal loss.
	FocalGamma float64 `koanf:"focal_gamma" validate:"gte=0"`
	// LabelSmoothing is applied to multi-hot tag targets.
	LabelSmoothing float64 `koanf:"label_smoothing" validate:"gte=0,lt=0.5"`
	// Temperature scales the supervised-contrastive similarities.
	Temperature float64 `koanf:"temperature" validate:"gt=0"`

	EvalEvery int `koanf:"eval_every" validate:"gte=1"`
	MineEvery int `koanf:"mine_every" validate:"gte=1"`
	// MaxTripletsPerAnchor caps triplets mined per anchor node.
	MaxTripletsPerAnchor int `koanf:"max_triplets_per_anchor" validate:"gte=1"`
	// Patience is the early-stop threshold in epochs without Hits@10
	// improvement.
	Patience int `koanf:"patience" validate:"gte=1"`
	// CollapseThreshold triggers the embedding-collapse warning when the
	// mean per-dimension std falls below it.
	CollapseThreshold float64 `koanf:"collapse_threshold" validate:"gt=0"`

	GraphLayers  int `koanf:"graph_layers" validate:"gte=1"`
	GraphHeads   int `koanf:"graph_heads" validate:"gte=1"`
	HeadDim      int `koanf:"head_dim" validate:"gte=1"`
	HiddenDim    int `koanf:"hidden_dim" validate:"gte=1"`
	EmbeddingDim int `koanf:"embedding_dim" validate:"gte=2"`

	Weights LossWeights `koanf:"weights"`

	// CheckpointDir enables on-disk snapshots when non-empty.
	CheckpointDir string `koanf:"checkpoint_dir"`
	// CheckpointKeep bounds retained snapshot versions per run.
	CheckpointKeep int `koanf:"checkpoint_keep" validate:"gte=1"`
}

// LossWeights are the coefficients of the nine training objectives.
type LossWeights struct {
	Ranking      float64 `koanf:"ranking" validate:"gte=0"`
	Tags         float64 `koanf:"tags" validate:"gte=0"`
	SupConStruct float64 `koanf:"supcon_struct" validate:"gte=0"`
	SupConTag    float64 `koanf:"supcon_tag" validate:"gte=0"`
	Align        float64 `koanf:"align" validate:"gte=0"`
	Proxy        float64 `koanf:"proxy" validate:"gte=0"`
	Variance     float64 `koanf:"variance" validate:"gte=0"`
	Center       float64 `koanf:"center" validate:"gte=0"`
	Cluster      float64 `koanf:"cluster" validate:"gte=0"`
}

// Map returns the weights keyed by loss name, for logs and metrics.
func (w LossWeights) Map() map[string]float64 {
	return map[string]float64{
		"ranking":       w.Ranking,
		"tags":          w.Tags,
		"supcon_struct": w.SupConStruct,
		"supcon_tag":    w.SupConTag,
		"align":         w.Align,
		"proxy":         w.Proxy,
		"variance":      w.Variance,
		"center":        w.Center,
		"cluster":       w.Cluster,
	}
}

// EnsembleConfig controls the multi-seed ensemble run.
type EnsembleConfig struct {
	// Seeds is the number of independent members to train.
	Seeds int `koanf:"seeds" validate:"gte=1"`
	// BaseSeed is the seed of member 0; member i uses BaseSeed+i.
	BaseSeed int64 `koanf:"base_seed"`
	// Parallelism > 1 trains members concurrently on a worker pool.
	Parallelism int `koanf:"parallelism" validate:"gte=1"`
}

// RecommendConfig holds the query-time defaults of the engine.
type RecommendConfig struct {
	TopK int `koanf:"top_k" validate:"gte=1,lte=100"`
	// Alpha blends embedding similarity against tag similarity.
	Alpha           float64 `koanf:"alpha" validate:"gte=0,lte=1"`
	Diversify       bool    `koanf:"diversify"`
	DiversityWeight float64 `koanf:"diversity_weight" validate:"gte=0,lte=1"`
	// MaxSuggestions caps fuzzy title suggestions on a query miss.
	MaxSuggestions int `koanf:"max_suggestions" validate:"gte=1,lte=10"`
	// ReloadInterval is the artifact watch period in serve mode.
	ReloadInterval time.Duration `koanf:"reload_interval" validate:"gt=0"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by file and environment values.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            6180,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: 1 * time.Minute,
		},
		Data: DataConfig{
			Dir:              "/data/affinis",
			FeaturesFile:     "features.npy",
			EdgesFile:        "edges.npy",
			TagsFile:         "tags.json",
			EntityIndexFile:  "entity_index.json",
			TitlesFile:       "titles.json",
			TextFeaturesFile: "",
			EvalPairsFile:    "eval_pairs.csv",
			IDPrefix:         "problem:",
			ExportDir:        "",
		},
		Train: TrainConfig{
			Epochs:               300,
			LearningRate:         1e-3,
			LearningRateMin:      1e-5,
			ClipNorm:             5.0,
			Dropout:              0.1,
			Margin:               0.3,
			FocalGamma:           2.0,
			LabelSmoothing:       0.1,
			Temperature:          0.07,
			EvalEvery:            10,
			MineEvery:            15,
			MaxTripletsPerAnchor: 4,
			Patience:             60,
			CollapseThreshold:    1e-4,
			GraphLayers:          2,
			GraphHeads:           4,
			HeadDim:              32,
			HiddenDim:            256,
			EmbeddingDim:         128,
			Weights: LossWeights{
				Ranking:      1.0,
				Tags:         0.5,
				SupConStruct: 0.1,
				SupConTag:    0.1,
				Align:        0.1,
				Proxy:        0.1,
				Variance:     0.05,
				Center:       0.01,
				Cluster:      0.05,
			},
			CheckpointDir:  "",
			CheckpointKeep: 3,
		},
		Ensemble: EnsembleConfig{
			Seeds:       3,
			BaseSeed:    42,
			Parallelism: 1,
		},
		Recommend: RecommendConfig{
			TopK:            10,
			Alpha:           0.7,
			Diversify:       true,
			DiversityWeight: 0.7,
			MaxSuggestions:  3,
			ReloadInterval:  60 * time.Second,
		},
	}
}

// Validate checks field constraints via struct tags, then the
// cross-field invariants the tags cannot express.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	checks := []func() error{
		c.validateSchedule,
		c.validateModelShape,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Train.LearningRateMin > c.Train.LearningRate {
		return fmt.Errorf("train.learning_rate_min %g exceeds train.learning_rate %g",
			c.Train.LearningRateMin, c.Train.LearningRate)
	}
	if c.Train.EvalEvery > c.Train.Epochs {
		return fmt.Errorf("train.eval_every %d exceeds train.epochs %d",
			c.Train.EvalEvery, c.Train.Epochs)
	}
	return nil
}

func (c *Config) validateModelShape() error {
	if c.Train.GraphHeads*c.Train.HeadDim != c.Train.EmbeddingDim {
		return fmt.Errorf("graph_heads %d * head_dim %d must equal embedding_dim %d",
			c.Train.GraphHeads, c.Train.HeadDim, c.Train.EmbeddingDim)
	}
	return nil
}
