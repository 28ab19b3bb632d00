package models

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/pkg/api"
	engerrors "repricer/pkg/errors"
)

type stubSpecs struct {
	spec api.ModelSpec
	err  error
}

func (s *stubSpecs) ActiveModelSpec(context.Context, string, api.ModelRole) (api.ModelSpec, error) {
	return s.spec, s.err
}

type countingFetcher struct {
	fetches int
	data    []byte
	err     error
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.fetches++
	return f.data, f.err
}

func linearArtifact() []byte {
	return []byte(`{"algorithm":"linear","intercept":1,"weights":[2]}`)
}

func testSpec() api.ModelSpec {
	return api.ModelSpec{
		ID:          uuid.New(),
		TenantID:    "t1",
		Role:        api.ModelDemandForecasting,
		Algorithm:   "linear",
		Version:     "v1",
		Features:    []string{"demand_score"},
		ArtifactURI: "s3://models/demand-v1.json",
		IsDefault:   true,
		IsActive:    true,
	}
}

func TestCacheFetchesOnce(t *testing.T) {
	specs := &stubSpecs{spec: testSpec()}
	fetcher := &countingFetcher{data: linearArtifact()}
	cache := NewCache(specs, fetcher, zerolog.Nop())

	ctx := context.Background()
	m1, err := cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)
	m2, err := cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, fetcher.fetches, "same version is served from cache")
}

func TestCacheRefetchesOnNewVersion(t *testing.T) {
	specs := &stubSpecs{spec: testSpec()}
	fetcher := &countingFetcher{data: linearArtifact()}
	cache := NewCache(specs, fetcher, zerolog.Nop())

	ctx := context.Background()
	_, err := cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)

	// A published v2 must invalidate the cached artifact.
	specs.spec.Version = "v2"
	_, err = cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.fetches)
}

func TestCacheInvalidate(t *testing.T) {
	specs := &stubSpecs{spec: testSpec()}
	fetcher := &countingFetcher{data: linearArtifact()}
	cache := NewCache(specs, fetcher, zerolog.Nop())

	ctx := context.Background()
	_, err := cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)

	cache.Invalidate("t1")
	_, err = cache.Active(ctx, "t1", api.ModelDemandForecasting)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.fetches)
}

func TestCachePropagatesSpecErrors(t *testing.T) {
	specs := &stubSpecs{err: engerrors.NewModelUnavailableError("demand_forecasting")}
	cache := NewCache(specs, &countingFetcher{}, zerolog.Nop())

	_, err := cache.Active(context.Background(), "t1", api.ModelDemandForecasting)
	require.Error(t, err)
	assert.True(t, engerrors.IsModelUnavailable(err))
}

func TestSplitS3URI(t *testing.T) {
	bucket, key, err := splitS3URI("s3://models/tenant/demand-v1.json")
	require.NoError(t, err)
	assert.Equal(t, "models", bucket)
	assert.Equal(t, "tenant/demand-v1.json", key)

	_, _, err = splitS3URI("https://example.com/model.json")
	require.Error(t, err)

	_, _, err = splitS3URI("s3://bucket-only")
	require.Error(t, err)
}
