package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSGetter downloads gs://bucket/object objects.
type GCSGetter struct {
	anonymous bool

	once   sync.Once
	client *gcs.Client
	err    error
}

// NewGCSGetter returns a getter that uses application default credentials,
// or no authentication when anonymous is set.
func NewGCSGetter(anonymous bool) *GCSGetter {
	return &GCSGetter{anonymous: anonymous}
}

func (g *GCSGetter) init(ctx context.Context) error {
	g.once.Do(func() {
		var opts []option.ClientOption
		if g.anonymous {
			opts = append(opts, option.WithoutAuthentication())
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			g.err = fmt.Errorf("failed to create GCS storage client: %w", err)
			return
		}
		g.client = client
	})
	return g.err
}

// Get streams the object body.
func (g *GCSGetter) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	if err := g.init(ctx); err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object gs://%s/%s: %w", bucket, key, err)
	}
	return r, nil
}

// Close releases the client if one was created.
func (g *GCSGetter) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
