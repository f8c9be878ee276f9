// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package dataset

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// readMatrixNPY loads a 2-D .npy file into a dense float64 matrix.
// Both float32 ("<f4") and float64 ("<f8") payloads are accepted, since
// upstream producers export either.
func readMatrixNPY(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInputIntegrity, path, err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read npy header of %s: %w", ErrInputIntegrity, path, err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s: expected 2-D array, got shape %v", ErrInputIntegrity, path, shape)
	}
	rows, cols := shape[0], shape[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %s: empty array with shape %v", ErrInputIntegrity, path, shape)
	}

	data := make([]float64, rows*cols)
	switch dtype := r.Header.Descr.Type; dtype {
	case "<f8", "f8", ">f8":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInputIntegrity, path, err)
		}
	case "<f4", "f4", ">f4":
		raw := make([]float32, rows*cols)
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInputIntegrity, path, err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported dtype %q for a feature matrix", ErrInputIntegrity, path, dtype)
	}

	return mat.NewDense(rows, cols, data), nil
}

// readEdgesNPY loads the edge list from a 2-D integer .npy file. Both
// 2×E and E×2 orientations are accepted; a shape of 2×2 is read as E×2.
func readEdgesNPY(path string) ([][2]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInputIntegrity, path, err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read npy header of %s: %w", ErrInputIntegrity, path, err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s: expected 2-D edge array, got shape %v", ErrInputIntegrity, path, shape)
	}
	rows, cols := shape[0], shape[1]

	data := make([]int64, rows*cols)
	switch dtype := r.Header.Descr.Type; dtype {
	case "<i8", "i8", ">i8":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInputIntegrity, path, err)
		}
	case "<i4", "i4", ">i4":
		raw := make([]int32, rows*cols)
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInputIntegrity, path, err)
		}
		for i, v := range raw {
			data[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported dtype %q for an edge list", ErrInputIntegrity, path, dtype)
	}

	var edges [][2]int
	switch {
	case cols == 2:
		edges = make([][2]int, rows)
		for i := 0; i < rows; i++ {
			edges[i] = [2]int{int(data[i*2]), int(data[i*2+1])}
		}
	case rows == 2:
		edges = make([][2]int, cols)
		for j := 0; j < cols; j++ {
			edges[j] = [2]int{int(data[j]), int(data[cols+j])}
		}
	default:
		return nil, fmt.Errorf("%w: %s: edge array must be 2×E or E×2, got shape %v", ErrInputIntegrity, path, shape)
	}
	return edges, nil
}

// writeMatrixNPY writes a dense matrix as a float64 .npy file, atomically
// via a temp file in the target directory.
func writeMatrixNPY(path string, m *mat.Dense) error {
	return writeAtomic(path, func(f *os.File) error {
		return npyio.Write(f, m)
	})
}
