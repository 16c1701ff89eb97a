package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/subset"
)

const maxBodyBytes = 1 << 20

// GeoPackageContentType is the media type of extract responses.
const GeoPackageContentType = "application/geopackage+sqlite3"

// Handler holds API route handlers.
type Handler struct {
	svc    *subset.Service
	tmpDir string
}

// NewHandler creates a new Handler. Extract outputs are staged in tmpDir,
// or the system temp dir when empty.
func NewHandler(svc *subset.Service, tmpDir string) *Handler {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Handler{svc: svc, tmpDir: tmpDir}
}

// Classify handles POST /api/classify.
//
//	@Summary	Classify identifiers by prefix
//	@Tags		identifiers
//	@Accept		json
//	@Produce	json
//	@Param		body	body		IdentifiersRequest	true	"Identifiers"
//	@Success	200		{object}	ClassifyResponse
//	@Failure	400		{object}	errResponse
//	@Router		/classify [post]
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIdentifiers(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Identifiers: h.svc.Classify(req.IDs)})
}

// Resolve handles POST /api/resolve.
//
//	@Summary	Resolve identifiers against the network table
//	@Tags		identifiers
//	@Accept		json
//	@Produce	json
//	@Param		body	body		IdentifiersRequest	true	"Identifiers"
//	@Success	200		{object}	ResolveResponse
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Router		/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIdentifiers(w, r)
	if !ok {
		return
	}
	spec, err := h.svc.Resolve(r.Context(), req.IDs)
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Spec: spec})
}

// Extract handles POST /api/extract and responds with the GeoPackage.
//
//	@Summary	Extract a hydrofabric subset
//	@Tags		identifiers
//	@Accept		json
//	@Produce	application/geopackage+sqlite3
//	@Param		body	body	IdentifiersRequest	true	"Identifiers"
//	@Success	200
//	@Failure	400	{object}	errResponse
//	@Failure	404	{object}	errResponse
//	@Router		/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIdentifiers(w, r)
	if !ok {
		return
	}

	dir, err := os.MkdirTemp(h.tmpDir, "hfx-extract-*")
	if err != nil {
		writeError(w, "extract", err)
		return
	}
	defer os.RemoveAll(dir)

	res, err := h.svc.Extract(r.Context(), req.IDs, filepath.Join(dir, "hydrofabric.gpkg"))
	if err != nil {
		writeError(w, "extract", err)
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		writeError(w, "extract", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, "extract", err)
		return
	}

	w.Header().Set("Content-Type", GeoPackageContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="hydrofabric.gpkg"`)
	http.ServeContent(w, r, "hydrofabric.gpkg", info.ModTime(), f)
}

func decodeIdentifiers(w http.ResponseWriter, r *http.Request) (IdentifiersRequest, bool) {
	var req IdentifiersRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "cannot read body"))
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid JSON"))
		return req, false
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "ids is required"))
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, op string, err error) {
	var invalid *apperr.InvalidIdentifierError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, invalid.Error()))
	case errors.Is(err, apperr.ErrNoFilterCriteria):
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "no identifiers given"))
	case errors.Is(err, apperr.ErrEmptyResolution):
		writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "identifiers not found in network table"))
	default:
		slog.Error(fmt.Sprintf("%s failed", op), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(http.StatusInternalServerError, "internal error"))
	}
}
