package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Getter downloads s3://bucket/key objects. The client is created on
// first use.
type S3Getter struct {
	region    string
	anonymous bool

	once   sync.Once
	client *s3.Client
	err    error
}

// NewS3Getter returns a getter for region. With anonymous set, requests are
// unsigned.
func NewS3Getter(region string, anonymous bool) *S3Getter {
	return &S3Getter{region: region, anonymous: anonymous}
}

func (g *S3Getter) init(ctx context.Context) error {
	g.once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if g.region != "" {
			opts = append(opts, config.WithRegion(g.region))
		}
		if g.anonymous {
			opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			g.err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		g.client = s3.NewFromConfig(cfg)
	})
	return g.err
}

// Get streams the object body.
func (g *S3Getter) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return nil, err
	}
	if err := g.init(ctx); err != nil {
		return nil, err
	}
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3 object %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}
