// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sbinet/npyio"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/recommend"
)

// writeCatalog lays down the label-side artifacts for a four problem
// catalog plus a pre-baked embedding export, and returns a config file
// pointing at them.
func writeCatalog(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()

	files := map[string]string{
		"entity_index.json": `{"problem:two-sum":0,"problem:three-sum":1,"problem:binary-tree-paths":2,"problem:course-schedule":3}`,
		"titles.json":       `{"two-sum":"Two Sum","three-sum":"Three Sum","binary-tree-paths":"Binary Tree Paths","course-schedule":"Course Schedule"}`,
		"tags.json":         `{"two-sum":["array","hash-table"],"three-sum":["array"],"binary-tree-paths":["tree"],"course-schedule":["graph"]}`,
		"embedding_by_id.json": `{"two-sum":[1,0],"three-sum":[0.8,0.6],` +
			`"binary-tree-paths":[0,1],"course-schedule":[-1,0]}`,
		"eval_pairs.csv": "Two Sum,Three Sum\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	configPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("logging:\n  level: error\ndata:\n  dir: %s\n", dir)
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir, configPath
}

// writeInt64NPY hand-assembles a v1.0 .npy file so tests can produce the
// integer edge list the loader expects without a numpy dependency.
func writeInt64NPY(t *testing.T, path string, rows, cols int, data []int64) {
	t.Helper()

	dict := fmt.Sprintf("{'descr': '<i8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	base := 6 + 2 + 2 + len(dict) + 1
	pad := (64 - base%64) % 64
	header := dict + strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		t.Fatalf("write npy header length: %v", err)
	}
	buf.WriteString(header)
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		t.Fatalf("write npy payload: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeFloat64NPY(t *testing.T, path string, m *mat.Dense) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := npyio.Write(f, m); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"affinis"}, args...))
	return out.String(), err
}

func TestAppStructure(t *testing.T) {
	app := newApp()

	want := []string{"train", "evaluate", "recommend", "serve"}
	if len(app.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("command[%d] = %q, want %q", i, app.Commands[i].Name, name)
		}
	}

	names := make(map[string]bool)
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, n := range []string{"config", "c", "log-level", "log-format"} {
		if !names[n] {
			t.Errorf("global flag %q not registered", n)
		}
	}
}

func TestRecommendCLI(t *testing.T) {
	_, configPath := writeCatalog(t)

	out, err := runCLI(t, "--config", configPath, "recommend",
		"--title", "Two Sum", "--top-k", "2", "--alpha", "1", "--diversify=false")
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}

	var resp recommend.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not a response JSON: %v\n%s", err, out)
	}
	if !resp.Found {
		t.Fatal("query was a miss for a catalogued title")
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Title != "Three Sum" {
		t.Errorf("top recommendation = %q, want Three Sum", resp.Recommendations[0].Title)
	}
}

func TestRecommendCLIMiss(t *testing.T) {
	_, configPath := writeCatalog(t)

	out, err := runCLI(t, "--config", configPath, "recommend", "--title", "two sum")
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}

	var resp recommend.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not a response JSON: %v\n%s", err, out)
	}
	if resp.Found {
		t.Fatal("lowercase title should miss the exact-match index")
	}
	found := false
	for _, s := range resp.Suggestions {
		if s == "Two Sum" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions %v do not offer the near match", resp.Suggestions)
	}
}

func TestRecommendCLIMissingArtifacts(t *testing.T) {
	dir, configPath := writeCatalog(t)
	if err := os.Remove(filepath.Join(dir, "embedding_by_id.json")); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, "--config", configPath, "recommend", "--title", "Two Sum")
	if err == nil {
		t.Fatal("expected an error without an embedding export")
	}
	if !strings.Contains(err.Error(), "load engine") {
		t.Errorf("error %q does not name the failing stage", err)
	}
}

func TestEvaluateCLI(t *testing.T) {
	_, configPath := writeCatalog(t)

	out, err := runCLI(t, "--config", configPath, "evaluate")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !strings.Contains(out, "queries 1  dropped 0") {
		t.Errorf("output %q lacks the query summary", out)
	}
	// Three Sum is Two Sum's nearest neighbor in the fixture embedding.
	if !strings.Contains(out, "hits@1  1.0000") {
		t.Errorf("output %q lacks the expected hits@1 line", out)
	}
}

func TestTrainCLIEndToEnd(t *testing.T) {
	dir, configPath := writeCatalog(t)

	writeFloat64NPY(t, filepath.Join(dir, "features.npy"), mat.NewDense(4, 3, []float64{
		1.0, 0.2, 0.1,
		0.9, 0.3, 0.2,
		0.1, 1.0, 0.4,
		0.2, 0.1, 1.0,
	}))
	writeInt64NPY(t, filepath.Join(dir, "edges.npy"), 2, 2, []int64{0, 1, 2, 3})

	yaml := fmt.Sprintf(`logging:
  level: error
data:
  dir: %s
train:
  epochs: 2
  eval_every: 1
  mine_every: 1
  patience: 2
  graph_layers: 1
  graph_heads: 2
  head_dim: 2
  embedding_dim: 4
  hidden_dim: 4
ensemble:
  seeds: 1
  parallelism: 1
`, dir)
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "train")
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	npyPath := filepath.Join(dir, dataset.EmbeddingNPYName)
	jsonPath := filepath.Join(dir, dataset.EmbeddingJSONName)
	for _, path := range []string{npyPath, jsonPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("export %s missing: %v", path, err)
		}
	}
	if !strings.Contains(out, "hits@10") {
		t.Errorf("output %q lacks the final Hits@K report", out)
	}

	// The exports must round-trip into a serving engine.
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	engine, err := loadEngine(cfg)
	if err != nil {
		t.Fatalf("exports do not load into an engine: %v", err)
	}
	stats := engine.Stats()
	if stats.Nodes != 4 || stats.Dim != 4 {
		t.Errorf("engine stats = %+v, want 4 nodes of dim 4", stats)
	}
}

func TestLoadEngineFromFixture(t *testing.T) {
	_, configPath := writeCatalog(t)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	engine, err := loadEngine(cfg)
	if err != nil {
		t.Fatalf("loadEngine failed: %v", err)
	}
	stats := engine.Stats()
	if stats.Nodes != 4 {
		t.Errorf("nodes = %d, want 4", stats.Nodes)
	}
	if stats.Tags != 4 {
		t.Errorf("tags = %d, want 4", stats.Tags)
	}
	if !stats.DegradedText {
		t.Error("fixture has no text features, engine should report degraded text")
	}
}

func TestLoadEvalSetToleratesMissingFile(t *testing.T) {
	dir, configPath := writeCatalog(t)
	if err := os.Remove(filepath.Join(dir, "eval_pairs.csv")); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ds, err := dataset.LoadLabels(cfg.Data)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}

	set, err := loadEvalSet(cfg, ds)
	if err != nil {
		t.Fatalf("missing eval pairs should not fail training: %v", err)
	}
	if !set.Empty() {
		t.Error("expected an empty eval set")
	}
}

func TestLoadEvalSetDropsUnknownTitles(t *testing.T) {
	dir, configPath := writeCatalog(t)
	rows := "Two Sum,Three Sum\nTwo Sum,No Such Problem\n"
	if err := os.WriteFile(filepath.Join(dir, "eval_pairs.csv"), []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ds, err := dataset.LoadLabels(cfg.Data)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}

	set, err := loadEvalSet(cfg, ds)
	if err != nil {
		t.Fatalf("loadEvalSet failed: %v", err)
	}
	if set.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", set.Dropped)
	}
	if len(set.Queries) != 1 {
		t.Errorf("queries = %d, want 1", len(set.Queries))
	}
}

func TestEvaluateCLIWithNPYExport(t *testing.T) {
	dir, configPath := writeCatalog(t)

	npyPath := filepath.Join(dir, "custom.npy")
	writeFloat64NPY(t, npyPath, mat.NewDense(4, 2, []float64{
		1, 0,
		0.8, 0.6,
		0, 1,
		-1, 0,
	}))

	out, err := runCLI(t, "--config", configPath, "evaluate", "--embedding", npyPath)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !strings.Contains(out, "hits@1  1.0000") {
		t.Errorf("output %q lacks the expected hits@1 line", out)
	}
}

func TestApplyTrainFlags(t *testing.T) {
	_, configPath := writeCatalog(t)

	app := newApp()
	var got config.EnsembleConfig
	var exportDir string
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "capture",
		Flags: trainCommand().Flags,
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			applyTrainFlags(c, cfg)
			got = cfg.Ensemble
			exportDir = cfg.Data.ExportDir
			return nil
		},
	})

	err := app.Run([]string{"affinis", "--config", configPath, "capture",
		"--seeds", "5", "--base-seed", "7", "--parallelism", "2", "--export-dir", "/tmp/out"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got.Seeds != 5 || got.BaseSeed != 7 || got.Parallelism != 2 {
		t.Errorf("ensemble config = %+v", got)
	}
	if exportDir != "/tmp/out" {
		t.Errorf("export dir = %q, want /tmp/out", exportDir)
	}
}

func TestNotifyContextCancelsOnSignal(t *testing.T) {
	ctx, cancel := notifyContext(context.Background())
	defer cancel()

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after SIGINT")
	}
}
