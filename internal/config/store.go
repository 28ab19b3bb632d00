// Package config loads and caches per-tenant pricing configuration:
// strategies, rule sets, safety constraints, and model registry entries.
// Configuration changes atomically as immutable snapshots; an evaluation
// started on one snapshot never observes a mix of versions.
package config

import (
	"context"
	"time"

	"repricer/pkg/api"
	engerrors "repricer/pkg/errors"
)

// Snapshot is one tenant's complete configuration at a point in time.
// It is immutable after construction and shared by reference.
type Snapshot struct {
	TenantID string
	Version  int64

	Strategies map[string]*api.Strategy
	Default    *api.Strategy
	Models     []api.ModelSpec

	LoadedAt time.Time
}

// Strategy resolves a strategy by ID string; empty selects the default.
func (s *Snapshot) Strategy(strategyID string) (*api.Strategy, error) {
	if strategyID == "" {
		if s.Default == nil {
			return nil, engerrors.NewStrategyNotFoundError("")
		}
		return s.Default, nil
	}
	strategy, ok := s.Strategies[strategyID]
	if !ok || !strategy.IsActive {
		return nil, engerrors.NewStrategyNotFoundError(strategyID)
	}
	return strategy, nil
}

// ActiveModel resolves the default active model spec for a role.
func (s *Snapshot) ActiveModel(role api.ModelRole) (api.ModelSpec, error) {
	var fallback *api.ModelSpec
	for i := range s.Models {
		m := &s.Models[i]
		if m.Role != role || !m.IsActive {
			continue
		}
		if m.IsDefault {
			return *m, nil
		}
		if fallback == nil {
			fallback = m
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return api.ModelSpec{}, engerrors.NewModelUnavailableError(string(role))
}

// Loader fetches a tenant's configuration from its backing store.
type Loader interface {
	Load(ctx context.Context, tenantID string) (*Snapshot, error)
}
