// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package api

import (
	"errors"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/recommend"
	"github.com/affinelabs/affinis/internal/validation"
)

// RecommendRequest is the validated body of POST /api/v1/recommend.
// Optional knobs are pointers so an explicit zero (alpha 0 means pure
// tag similarity) is distinguishable from an omitted field.
//
// Fields:
//   - Title: exact problem title to query (required)
//   - TopK: results to return (1-100, default from config)
//   - Alpha: embedding weight in the hybrid blend (0-1, default from config)
//   - Diversify: whether to MMR-rerank (default from config)
//   - DiversityWeight: MMR relevance weight (0-1, default from config)
type RecommendRequest struct {
	Title           string   `json:"title" validate:"required,min=1,max=512"`
	TopK            int      `json:"top_k" validate:"omitempty,gte=1,lte=100"`
	Alpha           *float64 `json:"alpha" validate:"omitempty,gte=0,lte=1"`
	Diversify       *bool    `json:"diversify"`
	DiversityWeight *float64 `json:"diversity_weight" validate:"omitempty,gte=0,lte=1"`
}

// resolve fills the omitted fields from configuration and returns the
// fully specified engine request.
func (req *RecommendRequest) resolve(cfg *config.RecommendConfig) recommend.Request {
	resolved := recommend.Request{
		Title:           req.Title,
		TopK:            req.TopK,
		Alpha:           cfg.Alpha,
		Diversify:       cfg.Diversify,
		DiversityWeight: cfg.DiversityWeight,
	}
	if resolved.TopK <= 0 {
		resolved.TopK = cfg.TopK
	}
	if req.Alpha != nil {
		resolved.Alpha = *req.Alpha
	}
	if req.Diversify != nil {
		resolved.Diversify = *req.Diversify
	}
	if req.DiversityWeight != nil {
		resolved.DiversityWeight = *req.DiversityWeight
	}
	return resolved
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or an APIError carrying the
// per-field failures as details.
func validateRequest(v interface{}) *APIError {
	err := validation.ValidateStruct(v)
	if err == nil {
		return nil
	}

	var verr *validation.Error
	if !errors.As(err, &verr) {
		return &APIError{
			Code:    ErrCodeValidationFailed,
			Message: err.Error(),
		}
	}
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: verr.Error(),
		Details: verr.Fields(),
	}
}
