package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"repricer/pkg/api"
)

// fileDocument is the on-disk shape for file-driven configuration. Used by
// the CLI for simulations and local runs; the server path loads from
// Postgres instead.
type fileDocument struct {
	TenantID   string          `json:"tenant_id"`
	Strategies []*api.Strategy `json:"strategies"`
	Models     []api.ModelSpec `json:"models,omitempty"`
}

// FileLoader loads one tenant's configuration from a JSON file.
type FileLoader struct {
	Path string
}

// Load parses and compiles the configuration file. Unlike the Postgres
// store, an invalid rule expression here is a hard error: a file is edited
// by hand and should fail loudly.
func (f *FileLoader) Load(_ context.Context, tenantID string) (*Snapshot, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", f.Path, err)
	}
	if doc.TenantID == "" {
		doc.TenantID = tenantID
	}

	snap := &Snapshot{
		TenantID:   doc.TenantID,
		Version:    time.Now().Unix(),
		Strategies: make(map[string]*api.Strategy, len(doc.Strategies)),
		Models:     doc.Models,
		LoadedAt:   time.Now().UTC(),
	}

	for _, st := range doc.Strategies {
		st.TenantID = doc.TenantID
		for i := range st.RuleSets {
			for j := range st.RuleSets[i].Rules {
				if err := st.RuleSets[i].Rules[j].Compile(); err != nil {
					return nil, fmt.Errorf("config file %s: %w", f.Path, err)
				}
			}
		}
		snap.Strategies[st.ID.String()] = st
		if st.IsDefault && st.IsActive && snap.Default == nil {
			snap.Default = st
		}
	}

	return snap, nil
}

var _ Loader = (*FileLoader)(nil)
