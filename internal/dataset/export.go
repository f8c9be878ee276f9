// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

// Default export file names under the configured export directory.
const (
	EmbeddingNPYName  = "embedding.npy"
	EmbeddingJSONName = "embedding_by_id.json"
)

// ExportEmbedding writes the trained embedding in both interop shapes:
// the raw N×D .npy matrix and the serving map from raw external id to
// vector. Both writes are atomic so a serve-mode reloader never observes
// a torn file.
func (d *Dataset) ExportEmbedding(npyPath, jsonPath string, emb *mat.Dense) error {
	rows, _ := emb.Dims()
	if rows != d.NumNodes() {
		return fmt.Errorf("%w: embedding has %d rows for %d nodes", ErrInputIntegrity, rows, d.NumNodes())
	}

	if err := writeMatrixNPY(npyPath, emb); err != nil {
		return fmt.Errorf("write %s: %w", npyPath, err)
	}

	byID := make(map[string][]float64, rows)
	for i := 0; i < rows; i++ {
		row := emb.RawRowView(i)
		vec := make([]float64, len(row))
		copy(vec, row)
		byID[d.RawID(i)] = vec
	}
	if err := writeJSONAtomic(jsonPath, byID); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	return nil
}

// LoadEmbeddingNPY reads a raw N×D embedding export and checks its row
// count against the dataset.
func (d *Dataset) LoadEmbeddingNPY(path string) (*mat.Dense, error) {
	emb, err := readMatrixNPY(path)
	if err != nil {
		return nil, err
	}
	rows, _ := emb.Dims()
	if rows != d.NumNodes() {
		return nil, fmt.Errorf("%w: embedding %s has %d rows for %d nodes",
			ErrInputIntegrity, path, rows, d.NumNodes())
	}
	return emb, nil
}

// LoadEmbeddingJSON reads the id→vector serving export and aligns it to
// the dataset's dense index order. Every indexed node must be present
// with a consistent dimension.
func (d *Dataset) LoadEmbeddingJSON(path string) (*mat.Dense, error) {
	byID, err := readJSONMap[[]float64](path)
	if err != nil {
		return nil, err
	}

	n := d.NumNodes()
	dim := 0
	for _, vec := range byID {
		dim = len(vec)
		break
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: %s holds no vectors", ErrInputIntegrity, path)
	}

	emb := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		vec, ok := byID[d.RawID(i)]
		if !ok {
			return nil, fmt.Errorf("%w: %s is missing id %q", ErrInputIntegrity, path, d.RawID(i))
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: %s: id %q has dimension %d, want %d",
				ErrInputIntegrity, path, d.RawID(i), len(vec), dim)
		}
		emb.SetRow(i, vec)
	}
	return emb, nil
}

// writeAtomic writes through a temp file in the destination directory
// and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeJSONAtomic(path string, v interface{}) error {
	return writeAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		return enc.Encode(v)
	})
}
