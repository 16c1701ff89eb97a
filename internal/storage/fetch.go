package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/hfx/internal/apperr"
)

// Fetcher turns a location into a readable local file.
type Fetcher struct {
	cache   *Cache
	getters map[string]Getter
	refresh bool
	logger  *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithGetter registers g for a URL scheme, replacing any existing getter.
func WithGetter(scheme string, g Getter) FetcherOption {
	return func(f *Fetcher) {
		f.getters[strings.ToLower(scheme)] = g
	}
}

// WithRefresh forces remote objects to be downloaded again.
func WithRefresh(refresh bool) FetcherOption {
	return func(f *Fetcher) {
		f.refresh = refresh
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher backed by cache. http and https are always
// available; other schemes need WithGetter.
func NewFetcher(cache *Cache, opts ...FetcherOption) *Fetcher {
	httpGetter := NewHTTPGetter(nil)
	f := &Fetcher{
		cache: cache,
		getters: map[string]Getter{
			"http":  httpGetter,
			"https": httpGetter,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns a local path for location. Local paths must exist and are
// returned as absolute paths; remote objects are downloaded into the cache
// unless already present.
func (f *Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	u, err := parseLocation(location)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" || u.Scheme == "file" {
		p := location
		if u.Scheme == "file" {
			p = u.Path
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("storage: resolve %s: %w", location, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("storage: stat %s: %w", location, err)
		}
		return abs, nil
	}

	getter, ok := f.getters[u.Scheme]
	if !ok {
		return "", fmt.Errorf("storage: scheme %q of %s: %w", u.Scheme, location, apperr.ErrUnsupportedLocation)
	}

	if !f.refresh && f.cache.Has(location) {
		p := f.cache.Path(location)
		f.logger.Debug("using cached copy", slog.String("location", location), slog.String("path", p))
		return p, nil
	}

	f.logger.Info("downloading", slog.String("location", location))
	body, err := getter.Get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("storage: get %s: %w", location, err)
	}
	defer body.Close()

	p, n, err := f.cache.Write(location, body)
	if err != nil {
		return "", err
	}
	f.logger.Info("downloaded",
		slog.String("location", location),
		slog.String("path", p),
		slog.Int64("bytes", n))
	return p, nil
}

// Close releases getters that hold clients.
func (f *Fetcher) Close() error {
	var errs []error
	for _, g := range f.getters {
		if c, ok := g.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// parseLocation parses URLs with a scheme; anything else is a local path.
func parseLocation(location string) (*url.URL, error) {
	if location == "" {
		return nil, fmt.Errorf("storage: empty location: %w", apperr.ErrUnsupportedLocation)
	}
	if !strings.Contains(location, "://") {
		return &url.URL{Path: location}, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", location, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

// bucketKey splits an s3:// or gs:// URL into bucket and object key.
func bucketKey(u *url.URL) (string, string, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: %s: missing bucket or key: %w", u, apperr.ErrUnsupportedLocation)
	}
	return bucket, key, nil
}
