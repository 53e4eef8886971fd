package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.KDense)
	assert.Equal(t, 200, cfg.KLex)
	assert.Equal(t, 60, cfg.RRFC)
	assert.Equal(t, 8, cfg.FastReturn)
	assert.Equal(t, 8, cfg.AccurateOut)
	assert.InDelta(t, 0.15, cfg.TopicBoost, 1e-9)
	assert.InDelta(t, 0.05, cfg.TagBoost, 1e-9)
	assert.Equal(t, 3, cfg.Router.K)
	assert.InDelta(t, 0.45, cfg.Router.MinConfSingle, 1e-9)
	assert.InDelta(t, 0.30, cfg.Router.MinConfDouble, 1e-9)
	assert.InDelta(t, 0.22, cfg.Router.MinConfTriple, 1e-9)
	assert.InDelta(t, 0.6, cfg.Router.Weights.Embed, 1e-9)
	assert.False(t, cfg.Router.HardGate)
	assert.Equal(t, 150*time.Millisecond, cfg.FastBudgetDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.AccurateBudgetDuration())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
k_dense: 300
tag_boost: 0.1
router:
  k: 5
  hard_gate: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.KDense)
	assert.InDelta(t, 0.1, cfg.TagBoost, 1e-9)
	assert.Equal(t, 5, cfg.Router.K)
	assert.True(t, cfg.Router.HardGate)
	// Untouched fields keep their defaults.
	assert.Equal(t, 200, cfg.KLex)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("k_dense: 300\n"), 0o644))

	t.Setenv("QUARRY_K_DENSE", "64")
	t.Setenv("QUARRY_ROUTER_MIN_CONF_SINGLE", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.KDense)
	assert.InDelta(t, 0.5, cfg.Router.MinConfSingle, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k_dense", func(c *Config) { c.KDense = 0 }},
		{"negative tag boost", func(c *Config) { c.TagBoost = -0.1 }},
		{"unordered thresholds", func(c *Config) { c.Router.MinConfTriple = 0.9 }},
		{"bad budget", func(c *Config) { c.FastBudget = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
