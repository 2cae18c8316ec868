package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "l14box", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)
	assert.Equal(t, 512, cfg.Engine.MaxDepth)
	assert.Equal(t, 1000, cfg.Engine.MaxColumns)
	assert.Equal(t, 800.0, cfg.Engine.Viewport.Width)
	assert.True(t, cfg.Engine.Scripts)
	assert.Equal(t, 4, cfg.Loader.Workers)
	assert.Equal(t, 10*time.Second, cfg.Loader.Timeout)
	assert.Equal(t, 16, cfg.Reflow.MaxPasses)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"logger format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"negative yield", func(c *Config) { c.Engine.YieldEvery = -1 }, "engine.yield_every"},
		{"zero depth", func(c *Config) { c.Engine.MaxDepth = 0 }, "engine.max_depth"},
		{"zero columns", func(c *Config) { c.Engine.MaxColumns = 0 }, "engine.max_columns"},
		{"negative budget", func(c *Config) { c.Engine.RecordBudget = -5 }, "engine.record_budget"},
		{"empty viewport", func(c *Config) { c.Engine.Viewport.Height = 0 }, "engine.viewport"},
		{"no workers", func(c *Config) { c.Loader.Workers = 0 }, "loader.workers"},
		{"negative timeout", func(c *Config) { c.Loader.Timeout = -time.Second }, "loader.timeout"},
		{"negative rate", func(c *Config) { c.Reflow.RatePerSecond = -1 }, "reflow.rate_per_second"},
		{"no passes", func(c *Config) { c.Reflow.MaxPasses = 0 }, "reflow.max_passes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("all problems are reported", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Engine.MaxDepth = 0
		cfg.Loader.Workers = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine.max_depth")
		assert.Contains(t, err.Error(), "loader.workers")
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
  format: json
engine:
  yield_every: 50
  record_budget: 2000
  viewport:
    width: 1024
  blocked:
    - ads.
    - tracker
loader:
  timeout: 2s
reflow:
  rate_per_second: 4.5
  burst: 2
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger.Level)
		assert.Equal(t, "json", cfg.Logger.Format)
		assert.Equal(t, 50, cfg.Engine.YieldEvery)
		assert.Equal(t, 2000, cfg.Engine.RecordBudget)
		assert.Equal(t, 1024.0, cfg.Engine.Viewport.Width)
		assert.Equal(t, 600.0, cfg.Engine.Viewport.Height, "untouched keys keep their defaults")
		assert.Equal(t, []string{"ads.", "tracker"}, cfg.Engine.Blocked)
		assert.Equal(t, 2*time.Second, cfg.Loader.Timeout)
		assert.Equal(t, 4.5, cfg.Reflow.RatePerSecond)
		assert.Equal(t, 2, cfg.Reflow.Burst)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("L14BOX_ENGINE_MAX_DEPTH", "64")
		v := viper.New()
		SetDefaults(v)
		v.SetEnvPrefix("L14BOX")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Engine.MaxDepth)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("reflow.max_passes", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
