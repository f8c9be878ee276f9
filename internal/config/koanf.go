// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/affinelabs/affinis/internal/validation"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/affinis/config.yaml",
	"/etc/affinis/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "AFFINIS_CONFIG"

// Load builds the configuration from layered sources:
//  1. built-in defaults
//  2. an optional YAML file (explicit path, or the first DefaultConfigPaths hit)
//  3. AFFINIS_* environment variables
//
// Precedence: env > file > defaults. The result is validated before return.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing file from the env override
// or the default search paths, or "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the keys parsed from comma-separated env strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values into slices for
// the known slice keys; YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps AFFINIS_* environment variables to config keys.
// Unmapped variables return "" and are skipped, so unrelated environment
// noise never pollutes the configuration.
//
// Examples:
//   - AFFINIS_LOG_LEVEL      -> logging.level
//   - AFFINIS_HTTP_PORT      -> server.port
//   - AFFINIS_TRAIN_EPOCHS   -> train.epochs
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Logging
		"affinis_log_level":  "logging.level",
		"affinis_log_format": "logging.format",
		"affinis_log_caller": "logging.caller",

		// HTTP server
		"affinis_http_host":           "server.host",
		"affinis_http_port":           "server.port",
		"affinis_http_timeout":        "server.timeout",
		"affinis_cors_origins":        "server.cors_origins",
		"affinis_rate_limit_requests": "server.rate_limit_reqs",
		"affinis_rate_limit_window":   "server.rate_limit_window",

		// Dataset artifacts
		"affinis_data_dir":           "data.dir",
		"affinis_features_file":      "data.features_file",
		"affinis_edges_file":         "data.edges_file",
		"affinis_tags_file":          "data.tags_file",
		"affinis_entity_index_file":  "data.entity_index_file",
		"affinis_titles_file":        "data.titles_file",
		"affinis_text_features_file": "data.text_features_file",
		"affinis_eval_pairs_file":    "data.eval_pairs_file",
		"affinis_id_prefix":          "data.id_prefix",
		"affinis_export_dir":         "data.export_dir",

		// Training
		"affinis_train_epochs":            "train.epochs",
		"affinis_train_learning_rate":     "train.learning_rate",
		"affinis_train_learning_rate_min": "train.learning_rate_min",
		"affinis_train_clip_norm":         "train.clip_norm",
		"affinis_train_dropout":           "train.dropout",
		"affinis_train_margin":            "train.margin",
		"affinis_train_eval_every":        "train.eval_every",
		"affinis_train_mine_every":        "train.mine_every",
		"affinis_train_patience":          "train.patience",
		"affinis_train_embedding_dim":     "train.embedding_dim",
		"affinis_train_checkpoint_dir":    "train.checkpoint_dir",
		"affinis_train_checkpoint_keep":   "train.checkpoint_keep",

		// Ensemble
		"affinis_ensemble_seeds":       "ensemble.seeds",
		"affinis_ensemble_base_seed":   "ensemble.base_seed",
		"affinis_ensemble_parallelism": "ensemble.parallelism",

		// Recommendation defaults
		"affinis_recommend_top_k":            "recommend.top_k",
		"affinis_recommend_alpha":            "recommend.alpha",
		"affinis_recommend_diversify":        "recommend.diversify",
		"affinis_recommend_diversity_weight": "recommend.diversity_weight",
		"affinis_recommend_max_suggestions":  "recommend.max_suggestions",
		"affinis_recommend_reload_interval":  "recommend.reload_interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// validateStruct runs the tag-level constraints through the shared
// validator singleton.
func validateStruct(c *Config) error {
	return validation.ValidateStruct(c)
}
