// Package storage resolves dataset locations (local paths, http(s), s3 and
// gs URLs) to local files, downloading remote objects into a cache.
package storage

import (
	"context"
	"io"
	"net/url"
)

// Getter opens a remote object for reading.
type Getter interface {
	// Get returns the object body for u. The caller closes it.
	Get(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// GetterFunc adapts a function to Getter.
type GetterFunc func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

// Get calls f(ctx, u).
func (f GetterFunc) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	return f(ctx, u)
}
