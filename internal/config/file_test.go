package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileConfig = `{
  "tenant_id": "t1",
  "strategies": [
    {
      "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0001",
      "name": "competitive",
      "strategy_type": "rule_based",
      "is_default": true,
      "is_active": true,
      "rule_sets": [
        {
          "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0002",
          "name": "default",
          "is_active": true,
          "rules": [
            {
              "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0003",
              "name": "undercut",
              "condition": "competitor_min > cost",
              "action_type": "undercut_competitor",
              "action_value": "competitor_min",
              "is_active": true
            }
          ]
        }
      ]
    }
  ]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileLoader(t *testing.T) {
	loader := &FileLoader{Path: writeConfig(t, fileConfig)}

	snap, err := loader.Load(context.Background(), "ignored")
	require.NoError(t, err)

	assert.Equal(t, "t1", snap.TenantID)
	require.NotNil(t, snap.Default)
	assert.Equal(t, "competitive", snap.Default.Name)

	// Rules arrive compiled.
	rule := &snap.Default.RuleSets[0].Rules[0]
	assert.NotNil(t, rule.ConditionProgram())
	assert.NotNil(t, rule.ValueProgram())
}

func TestFileLoaderRejectsBadExpression(t *testing.T) {
	bad := `{
	  "tenant_id": "t1",
	  "strategies": [{
	    "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0001",
	    "name": "broken",
	    "strategy_type": "rule_based",
	    "is_active": true,
	    "rule_sets": [{
	      "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0002",
	      "name": "s",
	      "is_active": true,
	      "rules": [{
	        "id": "9f1c6a66-58f0-4f52-9f44-3c9d4c3a0003",
	        "name": "r",
	        "condition": "max(current_price)",
	        "action_type": "set_price",
	        "action_value": "10",
	        "is_active": true
	      }]
	    }]
	  }]
	}`
	loader := &FileLoader{Path: writeConfig(t, bad)}

	_, err := loader.Load(context.Background(), "t1")
	require.Error(t, err, "hand-edited files fail loudly on bad expressions")
}

func TestFileLoaderMissingFile(t *testing.T) {
	loader := &FileLoader{Path: filepath.Join(t.TempDir(), "missing.json")}
	_, err := loader.Load(context.Background(), "t1")
	require.Error(t, err)
}
