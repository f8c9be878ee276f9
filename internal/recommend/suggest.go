// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package recommend

import "strings"

// suggest returns up to the configured number of catalog titles that
// contain the query as a substring or are contained by it, compared
// case-insensitively. Candidates are scanned in index order, so the
// output is deterministic.
func (e *Engine) suggest(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []string
	for _, title := range e.titles {
		t := strings.ToLower(title)
		if strings.Contains(t, q) || strings.Contains(q, t) {
			out = append(out, title)
			if len(out) == e.cfg.MaxSuggestions {
				break
			}
		}
	}
	return out
}
