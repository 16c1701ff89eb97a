package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/models"
)

// Observer receives resolution measurements. It may be nil.
type Observer interface {
	ObserveRead(d time.Duration)
}

// Resolver expands seed specs into every identifier reachable through the
// relationship table.
type Resolver struct {
	rel      Relation
	cols     Columns
	logger   *slog.Logger
	observer Observer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithColumns overrides the relationship table column names.
func WithColumns(cols Columns) ResolverOption {
	return func(r *Resolver) {
		r.cols = cols
	}
}

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithObserver records read timings.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver creates a Resolver reading from rel.
func NewResolver(rel Relation, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		rel:    rel,
		cols:   DefaultColumns(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve performs a single filtered read of the relationship table and
// returns the union of seed and every identifier found in matching rows.
//
// It fails with apperr.ErrNoFilterCriteria when seed is empty and with
// apperr.ErrEmptyResolution when no row matches.
func (r *Resolver) Resolve(ctx context.Context, seed models.FilterSpec) (models.FilterSpec, error) {
	filter, err := BuildFilter(seed, r.cols)
	if err != nil {
		return models.FilterSpec{}, err
	}
	r.logger.Info("using id filter", slog.String("filter", filter.String()))

	start := time.Now()
	table, err := r.rel.Read(ctx, r.cols.Names(), filter)
	if r.observer != nil {
		r.observer.ObserveRead(time.Since(start))
	}
	if err != nil {
		return models.FilterSpec{}, fmt.Errorf("network: read relation: %w", err)
	}

	if table.NumRows() == 0 {
		r.logger.Error("network table query returned 0 rows", slog.String("filter", filter.String()))
		return models.FilterSpec{}, fmt.Errorf("network: filter %s: %w", filter, apperr.ErrEmptyResolution)
	}

	found := Reduce(table, r.cols)
	r.warnMissing(seed, found)

	resolved := seed.Union(found)
	r.warnPartial(resolved)

	r.logger.Info("query returned spec",
		slog.Int("rows", table.NumRows()),
		slog.Int("catchments", len(resolved.Catchments)),
		slog.Int("waterbodies", len(resolved.Waterbodies)),
		slog.Int("nexuses", len(resolved.Nexuses)))
	r.logger.Debug("resolved spec",
		slog.Any("catchments", resolved.Catchments),
		slog.Any("waterbodies", resolved.Waterbodies),
		slog.Any("nexuses", resolved.Nexuses))

	return resolved, nil
}

// Reduce projects the table columns into a spec, dropping nulls and
// duplicates.
func Reduce(table *Table, cols Columns) models.FilterSpec {
	return models.FilterSpec{
		Catchments:  table.NonNull(cols.Divide),
		Waterbodies: table.NonNull(cols.Waterbody),
		Nexuses:     table.NonNull(cols.To),
	}.Dedup()
}

func (r *Resolver) warnMissing(seed, found models.FilterSpec) {
	for _, c := range []models.Category{models.Catchment, models.Waterbody, models.Nexus} {
		present := make(map[string]struct{})
		for _, id := range found.Set(c) {
			present[id] = struct{}{}
		}
		for _, id := range seed.Set(c) {
			if _, ok := present[id]; !ok {
				r.logger.Warn("identifier not found in network table", slog.String("id", id))
			}
		}
	}
}

func (r *Resolver) warnPartial(spec models.FilterSpec) {
	for _, c := range []models.Category{models.Catchment, models.Waterbody, models.Nexus} {
		if len(spec.Set(c)) == 0 {
			r.logger.Warn("resolved spec has no identifiers for category", slog.String("category", c.String()))
		}
	}
}
