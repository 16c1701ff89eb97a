// Package metrics holds the Prometheus collectors for hfx.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes.
const (
	OutcomeResolved          = "resolved"
	OutcomeInvalidIdentifier = "invalid_identifier"
	OutcomeNoCriteria        = "no_criteria"
	OutcomeEmpty             = "empty"
	OutcomeError             = "error"
)

// Registry owns a private Prometheus registry and the hfx collectors.
type Registry struct {
	registry *prometheus.Registry

	Resolutions         *prometheus.CounterVec
	NetworkReadDuration prometheus.Histogram
	ResolvedIdentifiers *prometheus.CounterVec
	ExtractedFeatures   *prometheus.CounterVec
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.Resolutions = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfx_resolutions_total",
			Help: "Total number of identifier resolutions by outcome",
		},
		[]string{"outcome"},
	)

	r.NetworkReadDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfx_network_read_duration_seconds",
			Help:    "Duration of network relationship table reads in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	r.ResolvedIdentifiers = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfx_resolved_identifiers_total",
			Help: "Total number of identifiers produced by resolution",
		},
		[]string{"category"},
	)

	r.ExtractedFeatures = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfx_extracted_features_total",
			Help: "Total number of features written to output GeoPackages",
		},
		[]string{"layer"},
	)

	return r
}

// ObserveRead records a network table read.
func (r *Registry) ObserveRead(d time.Duration) {
	r.NetworkReadDuration.Observe(d.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
