// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

// Package dataset assembles the training inputs from their on-disk
// artifacts: the node feature matrix, the edge list, the raw tag labels,
// and the id/index/title maps. It derives the fixed tag vocabulary, the
// multi-hot tag matrix, the IDF tag-weight table, and the optional text
// feature matrix, and exports trained embeddings back to disk.
//
// All artifacts are read once; a Dataset is immutable after Load.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/logging"
)

// ErrInputIntegrity marks fatal load-time failures: missing or malformed
// artifact files, and id/index/title inconsistencies between them.
var ErrInputIntegrity = errors.New("input integrity error")

// Dataset is one immutable training snapshot.
type Dataset struct {
	// Features is the N×F node feature matrix.
	Features *mat.Dense
	// Text is the N×Ft auxiliary text feature matrix. In degraded mode
	// it aliases the tag matrix.
	Text *mat.Dense
	// TagMatrix is the N×T multi-hot tag matrix over Vocab.
	TagMatrix *mat.Dense
	// Edges holds the loaded (src, dst) index pairs.
	Edges [][2]int

	// Vocab is the sorted tag vocabulary; TagIndex inverts it.
	Vocab    []string
	TagIndex map[string]int
	// TagSets holds each node's sorted tag indices; empty for untagged
	// nodes.
	TagSets [][]int
	// DocFreq counts nodes per tag; IDF is log(N / max(1, DocFreq)).
	DocFreq []int
	IDF     []float64

	// IndexByID maps namespaced external id to dense index; IDByIndex
	// inverts it.
	IndexByID map[string]int
	IDByIndex []string
	// TitleByIndex and IndexByTitle map between dense index and display
	// title.
	TitleByIndex []string
	IndexByTitle map[string]int

	// IDPrefix is the namespace token prepended to raw external ids.
	IDPrefix string

	// DegradedText reports that no text feature file was configured and
	// the tag matrix is standing in for it.
	DegradedText bool

	// SkippedTagIDs counts tag-label entries whose id had no feature
	// row; tag coverage may exceed the embedded node set.
	SkippedTagIDs int
}

// Inputs are the in-memory artifacts consumed by Assemble. Load fills
// one from disk; tests build them directly.
type Inputs struct {
	Features *mat.Dense
	// Text is optional; nil engages the degraded tag-matrix fallback.
	Text        *mat.Dense
	Edges       [][2]int
	RawTags     map[string][]string
	EntityIndex map[string]int
	Titles      map[string]string
	IDPrefix    string
}

// NumNodes returns N.
func (d *Dataset) NumNodes() int { return len(d.IDByIndex) }

// NumTags returns the tag vocabulary size T.
func (d *Dataset) NumTags() int { return len(d.Vocab) }

// FeatureDim returns F.
func (d *Dataset) FeatureDim() int {
	_, c := d.Features.Dims()
	return c
}

// TextDim returns the text feature width.
func (d *Dataset) TextDim() int {
	_, c := d.Text.Dims()
	return c
}

// RawID strips the namespace prefix from the external id of node i.
func (d *Dataset) RawID(i int) string {
	id := d.IDByIndex[i]
	if len(id) >= len(d.IDPrefix) && id[:len(d.IDPrefix)] == d.IDPrefix {
		return id[len(d.IDPrefix):]
	}
	return id
}

// SharedTags returns the tag indices present in both nodes' tag sets.
// Both inputs are sorted, so a linear merge suffices.
func (d *Dataset) SharedTags(a, b int) []int {
	ta, tb := d.TagSets[a], d.TagSets[b]
	var shared []int
	i, j := 0, 0
	for i < len(ta) && j < len(tb) {
		switch {
		case ta[i] == tb[j]:
			shared = append(shared, ta[i])
			i++
			j++
		case ta[i] < tb[j]:
			i++
		default:
			j++
		}
	}
	return shared
}

// Load assembles a full training snapshot from the configured artifacts.
// Every failure is fatal and wraps ErrInputIntegrity; the one tolerated
// irregularity is a tag-label id without a feature row, which is skipped
// and counted.
func Load(cfg config.DataConfig) (*Dataset, error) {
	in := Inputs{IDPrefix: cfg.IDPrefix}

	var err error
	if in.EntityIndex, err = readJSONMap[int](cfg.EntityIndexPath()); err != nil {
		return nil, err
	}
	if in.Titles, err = readJSONMap[string](cfg.TitlesPath()); err != nil {
		return nil, err
	}
	if in.RawTags, err = readJSONMap[[]string](cfg.TagsPath()); err != nil {
		return nil, err
	}
	if in.Features, err = readMatrixNPY(cfg.FeaturesPath()); err != nil {
		return nil, err
	}
	if in.Edges, err = readEdgesNPY(cfg.EdgesPath()); err != nil {
		return nil, err
	}
	if path := cfg.TextFeaturesPath(); path != "" {
		if in.Text, err = readMatrixNPY(path); err != nil {
			return nil, err
		}
	}

	return Assemble(in)
}

// LoadLabels assembles only the label-side state: vocabulary, tag
// matrix, IDF table, id/index/title maps. Serve mode uses this together
// with an exported embedding, skipping the feature and edge artifacts.
func LoadLabels(cfg config.DataConfig) (*Dataset, error) {
	in := Inputs{IDPrefix: cfg.IDPrefix}

	var err error
	if in.EntityIndex, err = readJSONMap[int](cfg.EntityIndexPath()); err != nil {
		return nil, err
	}
	if in.Titles, err = readJSONMap[string](cfg.TitlesPath()); err != nil {
		return nil, err
	}
	if in.RawTags, err = readJSONMap[[]string](cfg.TagsPath()); err != nil {
		return nil, err
	}

	d := &Dataset{IDPrefix: in.IDPrefix}
	if err := d.buildIndex(in.EntityIndex, in.Titles); err != nil {
		return nil, err
	}
	d.buildTags(in.RawTags)
	d.DegradedText = cfg.TextFeaturesPath() == ""
	return d, nil
}

// Assemble validates in-memory inputs and builds the snapshot.
func Assemble(in Inputs) (*Dataset, error) {
	log := logging.With().Str("component", "dataset").Logger()

	d := &Dataset{IDPrefix: in.IDPrefix}
	if err := d.buildIndex(in.EntityIndex, in.Titles); err != nil {
		return nil, err
	}
	d.buildTags(in.RawTags)

	if in.Features == nil {
		return nil, fmt.Errorf("%w: feature matrix is required", ErrInputIntegrity)
	}
	d.Features = in.Features
	rows, _ := d.Features.Dims()
	if rows != d.NumNodes() {
		return nil, fmt.Errorf("%w: feature matrix has %d rows for %d indexed nodes",
			ErrInputIntegrity, rows, d.NumNodes())
	}

	d.Edges = in.Edges
	for _, e := range d.Edges {
		if e[0] < 0 || e[0] >= d.NumNodes() || e[1] < 0 || e[1] >= d.NumNodes() {
			return nil, fmt.Errorf("%w: edge (%d,%d) references an index outside 0..%d",
				ErrInputIntegrity, e[0], e[1], d.NumNodes()-1)
		}
	}

	if in.Text != nil {
		d.Text = in.Text
		trows, _ := d.Text.Dims()
		if trows != d.NumNodes() {
			return nil, fmt.Errorf("%w: text feature matrix has %d rows for %d indexed nodes",
				ErrInputIntegrity, trows, d.NumNodes())
		}
	} else {
		d.Text = d.TagMatrix
		d.DegradedText = true
		log.Warn().Msg("no text features supplied, substituting the tag matrix")
	}

	log.Info().
		Int("nodes", d.NumNodes()).
		Int("tags", d.NumTags()).
		Int("edges", len(d.Edges)).
		Int("feature_dim", d.FeatureDim()).
		Int("skipped_tag_ids", d.SkippedTagIDs).
		Bool("degraded_text", d.DegradedText).
		Msg("dataset assembled")
	return d, nil
}

// buildIndex validates the entity index against the title map and
// materializes the bidirectional id/index/title lookups.
func (d *Dataset) buildIndex(entityIndex map[string]int, titles map[string]string) error {
	n := len(entityIndex)
	if n == 0 {
		return fmt.Errorf("%w: entity index is empty", ErrInputIntegrity)
	}

	d.IndexByID = entityIndex
	d.IDByIndex = make([]string, n)
	d.TitleByIndex = make([]string, n)
	d.IndexByTitle = make(map[string]int, n)

	seen := make([]bool, n)
	for id, idx := range entityIndex {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: id %q maps to index %d outside 0..%d",
				ErrInputIntegrity, id, idx, n-1)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d assigned to more than one id", ErrInputIntegrity, idx)
		}
		seen[idx] = true
		d.IDByIndex[idx] = id

		raw := id
		if len(raw) >= len(d.IDPrefix) && raw[:len(d.IDPrefix)] == d.IDPrefix {
			raw = raw[len(d.IDPrefix):]
		}
		title, ok := titles[raw]
		if !ok {
			return fmt.Errorf("%w: id %q has no title entry", ErrInputIntegrity, id)
		}
		d.TitleByIndex[idx] = title
	}

	for idx, title := range d.TitleByIndex {
		if prev, dup := d.IndexByTitle[title]; dup {
			logging.Warn().
				Str("title", title).
				Int("kept_index", prev).
				Int("dropped_index", idx).
				Msg("duplicate title, keeping first occurrence")
			continue
		}
		d.IndexByTitle[title] = idx
	}
	return nil
}

// buildTags derives the vocabulary, the multi-hot matrix, the per-node
// tag sets, and the IDF weight table from the raw id→tags mapping.
func (d *Dataset) buildTags(rawTags map[string][]string) {
	n := d.NumNodes()

	vocabSet := make(map[string]struct{})
	nodeTags := make(map[int][]string)
	for rawID, tags := range rawTags {
		idx, ok := d.IndexByID[d.IDPrefix+rawID]
		if !ok {
			d.SkippedTagIDs++
			logging.Debug().Str("id", rawID).Msg("tag label id has no feature row, skipping")
			continue
		}
		nodeTags[idx] = tags
		for _, t := range tags {
			vocabSet[t] = struct{}{}
		}
	}

	d.Vocab = make([]string, 0, len(vocabSet))
	for t := range vocabSet {
		d.Vocab = append(d.Vocab, t)
	}
	sort.Strings(d.Vocab)
	d.TagIndex = make(map[string]int, len(d.Vocab))
	for i, t := range d.Vocab {
		d.TagIndex[t] = i
	}

	t := len(d.Vocab)
	cols := t
	if cols == 0 {
		cols = 1 // keep the matrix well-formed for tagless datasets
	}
	d.TagMatrix = mat.NewDense(n, cols, nil)
	d.TagSets = make([][]int, n)
	d.DocFreq = make([]int, t)
	for idx, tags := range nodeTags {
		set := make([]int, 0, len(tags))
		for _, tag := range tags {
			ti := d.TagIndex[tag]
			if d.TagMatrix.At(idx, ti) == 1 {
				continue // duplicate tag on one node
			}
			d.TagMatrix.Set(idx, ti, 1)
			d.DocFreq[ti]++
			set = append(set, ti)
		}
		sort.Ints(set)
		d.TagSets[idx] = set
	}

	d.IDF = IDFWeights(n, d.DocFreq)
}

// readJSONMap decodes a JSON object file into a map with string keys.
func readJSONMap[V any](path string) (map[string]V, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInputIntegrity, path, err)
	}
	out := make(map[string]V)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInputIntegrity, path, err)
	}
	return out, nil
}
