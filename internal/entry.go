// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/extract"
	"github.com/starford/hfx/internal/metrics"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/network"
	"github.com/starford/hfx/internal/storage"
	"github.com/starford/hfx/internal/subset"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{
		stdout:  os.Stdout,
		format:  FormatJSON,
		version: "dev",
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// NewLogger builds the process logger from the application config. Logs go
// to stderr so stdout stays reserved for command output.
func NewLogger(cfg ApplicationConfig) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// runtime holds the wired components shared by every command.
type runtime struct {
	logger   *slog.Logger
	fetcher  *storage.Fetcher
	relation network.Relation
	svc      *subset.Service
}

func (rt *runtime) Close() error {
	return errors.Join(rt.relation.Close(), rt.fetcher.Close())
}

func setup(ctx context.Context, app *application, reg *metrics.Registry) (*runtime, error) {
	cfg := app.config
	logger := NewLogger(cfg.App)
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("hydrofabric", cfg.Sources.Hydrofabric),
		slog.String("network", cfg.Sources.Network),
		slog.String("network_layer", cfg.Sources.NetworkLayer),
		slog.String("cache_dir", cfg.Sources.CacheDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	cache, err := storage.NewCache(cfg.Sources.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	fetcher := storage.NewFetcher(cache,
		storage.WithGetter("s3", storage.NewS3Getter(cfg.Sources.S3Region, cfg.Sources.Anonymous)),
		storage.WithGetter("gs", storage.NewGCSGetter(cfg.Sources.Anonymous)),
		storage.WithRefresh(app.refresh),
		storage.WithFetchLogger(logger),
	)

	netPath, err := fetcher.Fetch(ctx, cfg.Sources.Network)
	if err != nil {
		fetcher.Close()
		return nil, fmt.Errorf("fetch network table: %w", err)
	}
	rel, err := network.Open(netPath, cfg.Sources.NetworkLayer)
	if err != nil {
		fetcher.Close()
		return nil, fmt.Errorf("open network table: %w", err)
	}

	resolverOpts := []network.ResolverOption{
		network.WithColumns(cfg.Sources.Columns),
		network.WithLogger(logger),
	}
	if reg != nil {
		resolverOpts = append(resolverOpts, network.WithObserver(reg))
	}
	resolver := network.NewResolver(rel, resolverOpts...)

	source := hydrofabricSource(fetcher, cfg.Sources.Hydrofabric, logger)
	return &runtime{
		logger:   logger,
		fetcher:  fetcher,
		relation: rel,
		svc:      subset.NewService(resolver, source, reg, logger),
	}, nil
}

// hydrofabricSource fetches the hydrofabric GeoPackage on first use and
// reuses the extractor afterwards.
func hydrofabricSource(fetcher *storage.Fetcher, location string, logger *slog.Logger) subset.ExtractorSource {
	var (
		mu        sync.Mutex
		extractor *extract.Extractor
	)
	return func(ctx context.Context) (*extract.Extractor, error) {
		mu.Lock()
		defer mu.Unlock()
		if extractor != nil {
			return extractor, nil
		}
		path, err := fetcher.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch hydrofabric: %w", err)
		}
		e, err := extract.New(path, logger)
		if err != nil {
			return nil, err
		}
		extractor = e
		return extractor, nil
	}
}

// checkIdentifiers rejects bad input before any dataset is downloaded.
func checkIdentifiers(ids []string) error {
	seed, err := models.FoldIdentifiers(ids)
	if err != nil {
		return err
	}
	if seed.IsEmpty() {
		return apperr.ErrNoFilterCriteria
	}
	return nil
}

// Run resolves the configured identifiers and writes the matching
// hydrofabric subset to the configured output path.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if err := checkIdentifiers(app.ids); err != nil {
		return err
	}

	rt, err := setup(ctx, app, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.Extract(ctx, app.ids, app.config.Output.Path)
	if err != nil {
		return err
	}
	rt.logger.Info("Outputted hydrofabric to " + res.Path)
	return nil
}

// Resolve prints the resolved identifier sets without extracting features.
func Resolve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.format != FormatJSON && app.format != FormatYAML {
		return fmt.Errorf("unknown format %q", app.format)
	}
	if err := checkIdentifiers(app.ids); err != nil {
		return err
	}

	rt, err := setup(ctx, app, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	spec, err := rt.svc.Resolve(ctx, app.ids)
	if err != nil {
		return err
	}

	if app.format == FormatYAML {
		enc := yaml.NewEncoder(app.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(spec); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(app.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(spec)
}

// Classify prints each identifier with its category. It reads no dataset and
// fails when any identifier is invalid, after printing all of them.
func Classify(opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc := subset.NewService(nil, nil, nil, NewLogger(app.config.App))

	var invalid error
	for _, c := range svc.Classify(app.ids) {
		fmt.Fprintf(app.stdout, "%s\t%s\n", c.ID, c.Category)
		if !c.Valid && invalid == nil {
			invalid = &apperr.InvalidIdentifierError{ID: c.ID}
		}
	}
	return invalid
}
