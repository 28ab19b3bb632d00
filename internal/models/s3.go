package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher loads model artifacts from S3 URIs of the form
// s3://bucket/key.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher builds a fetcher using the ambient AWS credential chain.
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

// Fetch downloads the artifact object.
func (f *S3Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("artifact URI %q is not an s3:// URI", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("artifact URI %q is missing bucket or key", uri)
	}
	return bucket, key, nil
}

var _ ArtifactFetcher = (*S3Fetcher)(nil)

// FileFetcher loads artifacts from the local filesystem. URIs may carry a
// file:// prefix or be plain paths. Used by the CLI and tests.
type FileFetcher struct{}

// Fetch reads the artifact file.
func (FileFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	return data, nil
}

var _ ArtifactFetcher = (FileFetcher{})
