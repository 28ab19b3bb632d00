// Package models resolves model-registry entries into loaded, scoreable
// models. Artifacts are fetched lazily from the artifact store and cached
// per (tenant, role); publishing a new default version invalidates the
// cached artifact on the next lookup.
package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"repricer/decision/ml"
	"repricer/pkg/api"
)

// SpecSource resolves the active default registry entry for a role.
// The configuration snapshot cache implements this.
type SpecSource interface {
	ActiveModelSpec(ctx context.Context, tenantID string, role api.ModelRole) (api.ModelSpec, error)
}

// ArtifactFetcher retrieves a serialized model artifact by its URI.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

type cacheKey struct {
	tenantID string
	role     api.ModelRole
}

type cacheEntry struct {
	specID  string
	version string
	model   *ml.Model
}

// Cache is an ml.ModelProvider backed by the model registry and an
// artifact store.
type Cache struct {
	specs   SpecSource
	fetcher ArtifactFetcher
	log     zerolog.Logger

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
}

// NewCache builds the model cache.
func NewCache(specs SpecSource, fetcher ArtifactFetcher, log zerolog.Logger) *Cache {
	return &Cache{
		specs:   specs,
		fetcher: fetcher,
		log:     log,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Active returns the loaded model for the tenant's default registry entry
// of the role, fetching and deserializing the artifact on first use or
// after a version change.
func (c *Cache) Active(ctx context.Context, tenantID string, role api.ModelRole) (*ml.Model, error) {
	spec, err := c.specs.ActiveModelSpec(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}

	key := cacheKey{tenantID: tenantID, role: role}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.specID == spec.ID.String() && entry.version == spec.Version {
		return entry.model, nil
	}

	data, err := c.fetcher.Fetch(ctx, spec.ArtifactURI)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact for model %s: %w", spec.ID, err)
	}
	model, err := ml.NewModel(spec, data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{specID: spec.ID.String(), version: spec.Version, model: model}
	c.mu.Unlock()

	c.log.Info().
		Str("tenant", tenantID).
		Str("role", string(role)).
		Str("model_id", spec.ID.String()).
		Str("version", spec.Version).
		Str("algorithm", spec.Algorithm).
		Msg("model artifact loaded")

	return model, nil
}

// Invalidate drops every cached model for the tenant.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	for key := range c.entries {
		if key.tenantID == tenantID {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

var _ ml.ModelProvider = (*Cache)(nil)
