package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"repricer/pkg/api"
)

// Cache serves immutable configuration snapshots per tenant, refreshing
// them through a Loader when they age out. A refresh swaps the snapshot
// pointer atomically under the lock; readers holding an old snapshot keep
// a consistent view until their evaluation finishes.
type Cache struct {
	loader Loader
	ttl    time.Duration
	log    zerolog.Logger

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// DefaultTTL is how long a tenant snapshot is served before a reload.
const DefaultTTL = 5 * time.Minute

// NewCache builds a snapshot cache over the loader.
func NewCache(loader Loader, log zerolog.Logger) *Cache {
	return &Cache{
		loader:    loader,
		ttl:       DefaultTTL,
		log:       log,
		snapshots: make(map[string]*Snapshot),
	}
}

// WithTTL overrides the snapshot lifetime. A non-positive ttl disables
// expiry; snapshots then refresh only via Invalidate.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// Snapshot returns the tenant's current snapshot, loading it on first use
// or after expiry. A failed reload keeps serving the stale snapshot with a
// logged error; configuration outages degrade, they do not stop pricing.
func (c *Cache) Snapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[tenantID]
	c.mu.RUnlock()

	if ok && !c.expired(snap) {
		return snap, nil
	}

	fresh, err := c.loader.Load(ctx, tenantID)
	if err != nil {
		if ok {
			c.log.Error().Err(err).Str("tenant", tenantID).Msg("config reload failed, serving stale snapshot")
			return snap, nil
		}
		return nil, fmt.Errorf("loading config for tenant %s: %w", tenantID, err)
	}

	c.mu.Lock()
	// Another goroutine may have refreshed first; last write wins, both
	// snapshots are valid.
	c.snapshots[tenantID] = fresh
	c.mu.Unlock()

	c.log.Debug().
		Str("tenant", tenantID).
		Int64("version", fresh.Version).
		Int("strategies", len(fresh.Strategies)).
		Int("models", len(fresh.Models)).
		Msg("config snapshot loaded")

	return fresh, nil
}

// Strategy implements the engine's ConfigProvider.
func (c *Cache) Strategy(ctx context.Context, tenantID, strategyID string) (*api.Strategy, error) {
	snap, err := c.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return snap.Strategy(strategyID)
}

// ActiveModelSpec resolves the tenant's default active model for a role
// from the current snapshot.
func (c *Cache) ActiveModelSpec(ctx context.Context, tenantID string, role api.ModelRole) (api.ModelSpec, error) {
	snap, err := c.Snapshot(ctx, tenantID)
	if err != nil {
		return api.ModelSpec{}, err
	}
	return snap.ActiveModel(role)
}

// Invalidate drops the tenant's snapshot so the next read reloads.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.snapshots, tenantID)
	c.mu.Unlock()
}

// Publish installs a snapshot directly, bypassing the loader. Used by
// file-driven CLI runs and tests.
func (c *Cache) Publish(snap *Snapshot) {
	c.mu.Lock()
	c.snapshots[snap.TenantID] = snap
	c.mu.Unlock()
}

func (c *Cache) expired(snap *Snapshot) bool {
	if c.ttl <= 0 {
		return false
	}
	return time.Since(snap.LoadedAt) > c.ttl
}
