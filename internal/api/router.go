package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/hfx/internal/subset"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *subset.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc, "")

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/classify", h.Classify)
	r.Post("/resolve", h.Resolve)
	r.Post("/extract", h.Extract)

	return r
}
