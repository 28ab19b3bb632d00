package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/pkg/api"
	engerrors "repricer/pkg/errors"
)

type countingLoader struct {
	loads int
	snap  *Snapshot
	err   error
}

func (l *countingLoader) Load(_ context.Context, tenantID string) (*Snapshot, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	snap := *l.snap
	snap.TenantID = tenantID
	snap.LoadedAt = time.Now().UTC()
	return &snap, nil
}

func testSnapshot() *Snapshot {
	def := &api.Strategy{
		ID:        uuid.New(),
		Name:      "default",
		Type:      api.StrategyRuleBased,
		IsDefault: true,
		IsActive:  true,
	}
	other := &api.Strategy{
		ID:       uuid.New(),
		Name:     "other",
		Type:     api.StrategyRuleBased,
		IsActive: true,
	}
	inactive := &api.Strategy{
		ID:   uuid.New(),
		Name: "retired",
		Type: api.StrategyRuleBased,
	}
	return &Snapshot{
		TenantID: "t1",
		Version:  1,
		Strategies: map[string]*api.Strategy{
			def.ID.String():      def,
			other.ID.String():    other,
			inactive.ID.String(): inactive,
		},
		Default:  def,
		LoadedAt: time.Now().UTC(),
	}
}

func TestSnapshotStrategyResolution(t *testing.T) {
	snap := testSnapshot()

	got, err := snap.Strategy("")
	require.NoError(t, err)
	assert.Equal(t, "default", got.Name)

	for id, st := range snap.Strategies {
		if st.Name == "other" {
			got, err = snap.Strategy(id)
			require.NoError(t, err)
			assert.Equal(t, "other", got.Name)
		}
		if st.Name == "retired" {
			_, err = snap.Strategy(id)
			require.Error(t, err)
			assert.True(t, engerrors.IsStrategyNotFound(err), "inactive strategies resolve as missing")
		}
	}

	_, err = snap.Strategy(uuid.NewString())
	require.Error(t, err)
	assert.True(t, engerrors.IsStrategyNotFound(err))
}

func TestSnapshotStrategyNoDefault(t *testing.T) {
	snap := testSnapshot()
	snap.Default = nil

	_, err := snap.Strategy("")
	require.Error(t, err)
	assert.True(t, engerrors.IsStrategyNotFound(err))
}

func TestSnapshotActiveModel(t *testing.T) {
	snap := testSnapshot()
	defaultModel := api.ModelSpec{
		ID: uuid.New(), Role: api.ModelDemandForecasting,
		Version: "v2", IsDefault: true, IsActive: true,
	}
	snap.Models = []api.ModelSpec{
		{ID: uuid.New(), Role: api.ModelDemandForecasting, Version: "v1", IsActive: true},
		defaultModel,
		{ID: uuid.New(), Role: api.ModelBuyBoxPrediction, Version: "v1", IsDefault: true},
	}

	got, err := snap.ActiveModel(api.ModelDemandForecasting)
	require.NoError(t, err)
	assert.Equal(t, defaultModel.ID, got.ID, "the default active version wins")

	// The buy-box entry is default but inactive.
	_, err = snap.ActiveModel(api.ModelBuyBoxPrediction)
	require.Error(t, err)
	assert.True(t, engerrors.IsModelUnavailable(err))

	_, err = snap.ActiveModel(api.ModelPriceOptimization)
	require.Error(t, err)
	assert.True(t, engerrors.IsModelUnavailable(err))
}

func TestSnapshotActiveModelFallsBackToNonDefault(t *testing.T) {
	snap := testSnapshot()
	only := api.ModelSpec{ID: uuid.New(), Role: api.ModelPriceOptimization, Version: "v1", IsActive: true}
	snap.Models = []api.ModelSpec{only}

	got, err := snap.ActiveModel(api.ModelPriceOptimization)
	require.NoError(t, err)
	assert.Equal(t, only.ID, got.ID)
}

func TestCacheLoadsOnce(t *testing.T) {
	loader := &countingLoader{snap: testSnapshot()}
	cache := NewCache(loader, zerolog.Nop())

	ctx := context.Background()
	_, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)
	_, err = cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, loader.loads)
}

func TestCacheReloadsAfterInvalidate(t *testing.T) {
	loader := &countingLoader{snap: testSnapshot()}
	cache := NewCache(loader, zerolog.Nop())

	ctx := context.Background()
	_, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	cache.Invalidate("t1")
	_, err = cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 2, loader.loads)
}

func TestCacheReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{snap: testSnapshot()}
	cache := NewCache(loader, zerolog.Nop()).WithTTL(time.Nanosecond)

	ctx := context.Background()
	_, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 2, loader.loads)
}

func TestCacheServesStaleOnReloadFailure(t *testing.T) {
	loader := &countingLoader{snap: testSnapshot()}
	cache := NewCache(loader, zerolog.Nop()).WithTTL(time.Nanosecond)

	ctx := context.Background()
	first, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err)

	loader.err = errors.New("database down")
	time.Sleep(time.Millisecond)

	stale, err := cache.Snapshot(ctx, "t1")
	require.NoError(t, err, "a failed reload serves the previous snapshot")
	assert.Equal(t, first, stale)
}

func TestCacheFirstLoadFailure(t *testing.T) {
	loader := &countingLoader{err: errors.New("database down")}
	cache := NewCache(loader, zerolog.Nop())

	_, err := cache.Snapshot(context.Background(), "t1")
	require.Error(t, err)
}

func TestCachePublish(t *testing.T) {
	loader := &countingLoader{snap: testSnapshot()}
	cache := NewCache(loader, zerolog.Nop())

	cache.Publish(testSnapshot())

	_, err := cache.Strategy(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, loader.loads, "published snapshots bypass the loader")
}
