// Package subset ties identifier classification, network resolution and
// layer extraction together for the CLI, HTTP and MCP front ends.
package subset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/extract"
	"github.com/starford/hfx/internal/metrics"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/network"
)

// Classification is the category assigned to one raw identifier.
type Classification struct {
	ID       string          `json:"id"`
	Category models.Category `json:"category"`
	Valid    bool            `json:"valid"`
}

// ExtractorSource supplies the extractor on first use, after resolution has
// succeeded.
type ExtractorSource func(ctx context.Context) (*extract.Extractor, error)

// Static returns a source that always yields e.
func Static(e *extract.Extractor) ExtractorSource {
	return func(context.Context) (*extract.Extractor, error) {
		return e, nil
	}
}

// Service coordinates resolution and extraction.
type Service struct {
	resolver *network.Resolver
	source   ExtractorSource
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// NewService creates a service. source and reg may be nil; without a source
// only classification and resolution are available.
func NewService(resolver *network.Resolver, source ExtractorSource, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		source:   source,
		metrics:  reg,
		logger:   logger,
	}
}

// Classify reports the category of every identifier without failing on
// invalid ones.
func (s *Service) Classify(ids []string) []Classification {
	out := make([]Classification, len(ids))
	for i, id := range ids {
		c := models.Classify(id)
		out[i] = Classification{ID: id, Category: c, Valid: c != models.Unknown}
	}
	return out
}

// Resolve folds ids into a seed spec and resolves it against the network
// table. An invalid identifier fails before any query is issued.
func (s *Service) Resolve(ctx context.Context, ids []string) (models.FilterSpec, error) {
	s.logger.Debug("identifiers", slog.Any("ids", ids))

	seed, err := models.FoldIdentifiers(ids)
	if err != nil {
		s.record(err)
		return models.FilterSpec{}, err
	}
	spec, err := s.resolver.Resolve(ctx, seed)
	s.record(err)
	if err != nil {
		return models.FilterSpec{}, err
	}

	if s.metrics != nil {
		for _, c := range []models.Category{models.Catchment, models.Waterbody, models.Nexus} {
			s.metrics.ResolvedIdentifiers.WithLabelValues(c.String()).Add(float64(len(spec.Set(c))))
		}
	}
	return spec, nil
}

// Extract resolves ids and writes the matching features to output. The
// hydrofabric source is only obtained once resolution has succeeded.
func (s *Service) Extract(ctx context.Context, ids []string, output string) (*extract.Result, error) {
	if s.source == nil {
		return nil, errors.New("subset: no hydrofabric source configured")
	}
	spec, err := s.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	extractor, err := s.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("subset: hydrofabric source: %w", err)
	}
	res, err := extractor.Extract(ctx, spec, output)
	if err != nil {
		return nil, fmt.Errorf("subset: extract: %w", err)
	}
	if s.metrics != nil {
		for layer, n := range res.Features {
			s.metrics.ExtractedFeatures.WithLabelValues(layer).Add(float64(n))
		}
	}
	s.logger.Info("wrote hydrofabric subset", slog.String("path", res.Path), slog.Any("features", res.Features))
	return res, nil
}

func (s *Service) record(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Resolutions.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps a resolution error to its metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeResolved
	case errors.Is(err, apperr.ErrInvalidIdentifier):
		return metrics.OutcomeInvalidIdentifier
	case errors.Is(err, apperr.ErrNoFilterCriteria):
		return metrics.OutcomeNoCriteria
	case errors.Is(err, apperr.ErrEmptyResolution):
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeError
	}
}
