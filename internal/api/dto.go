package api

import (
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/subset"
)

// IdentifiersRequest is the request body shared by all endpoints.
type IdentifiersRequest struct {
	IDs []string `json:"ids" example:"cat-32,nex-85" validate:"required"`
}

// ClassifyResponse lists the category of each requested identifier.
type ClassifyResponse struct {
	Identifiers []subset.Classification `json:"identifiers" validate:"required"`
}

// ResolveResponse wraps a resolved spec.
type ResolveResponse struct {
	Spec models.FilterSpec `json:"spec" validate:"required"`
}
