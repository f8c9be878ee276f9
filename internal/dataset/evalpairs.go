// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// EvalPair is one (query title, target title) evaluation row. Pairs feed
// the Hits@K metric only; they never contribute gradients.
type EvalPair struct {
	Query  string
	Target string
}

// LoadEvalPairs reads the two-column evaluation CSV. A missing or
// malformed file is fatal; title resolution happens later in the
// evaluator, where unresolvable rows are dropped and counted.
func LoadEvalPairs(path string) ([]EvalPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInputIntegrity, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInputIntegrity, path, err)
	}

	pairs := make([]EvalPair, 0, len(records))
	for _, rec := range records {
		q := strings.TrimSpace(rec[0])
		t := strings.TrimSpace(rec[1])
		if q == "" || t == "" {
			return nil, fmt.Errorf("%w: %s: evaluation row with empty title", ErrInputIntegrity, path)
		}
		pairs = append(pairs, EvalPair{Query: q, Target: t})
	}
	return pairs, nil
}
