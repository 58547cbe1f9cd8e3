package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Agent.MaxCycles)
	assert.Equal(t, 300*time.Second, cfg.Agent.TTL)
	assert.InDelta(t, 0.7, cfg.Agent.ClarityThreshold, 1e-9)
	assert.Equal(t, 100, cfg.Agent.HistoryLimit)
	assert.Equal(t, 32, cfg.Scheduler.MaxLiveAgents)
	assert.Equal(t, 1, cfg.Scheduler.Workers)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Tools.ValidateArgs)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentkernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  max_cycles: 5
  ttl: 90s
scheduler:
  workers: 4
  error_policy: requeue_retryable
memory:
  backend: redis
  ttl: 1h
oracle:
  provider: anthropic
  model: claude-3-5-haiku-latest
`), 0o600))

	t.Setenv("AGENTKERNEL_ORACLE_MAX_CALLS", "12")
	t.Setenv("AGENTKERNEL_LOGGING_LEVEL", "debug")
	t.Setenv("AGENTKERNEL_TOOLS_VALIDATE_ARGS", "false")

	v := viper.New()
	v.SetConfigFile(path)
	ConfigureEnv(v)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxCycles)
	assert.Equal(t, 90*time.Second, cfg.Agent.TTL)
	assert.Equal(t, 100, cfg.Agent.HistoryLimit)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, "requeue_retryable", cfg.Scheduler.ErrorPolicy)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, time.Hour, cfg.Memory.TTL)
	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Oracle.Model)
	assert.Equal(t, 12, cfg.Oracle.MaxCalls)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Tools.ValidateArgs)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]func(c *Config){
		"max cycles": func(c *Config) { c.Agent.MaxCycles = 0 },
		"ttl":        func(c *Config) { c.Agent.TTL = 0 },
		"clarity":    func(c *Config) { c.Agent.ClarityThreshold = 1.5 },
		"workers":    func(c *Config) { c.Scheduler.Workers = 0 },
		"policy":     func(c *Config) { c.Scheduler.ErrorPolicy = "retry_forever" },
		"backend":    func(c *Config) { c.Memory.Backend = "sqlite" },
		"redis url":  func(c *Config) { c.Memory = MemoryConfig{Backend: "redis"} },
		"provider":   func(c *Config) { c.Oracle.Provider = "gemini" },
		"format":     func(c *Config) { c.Logging.Format = "xml" },
		"capacity":   func(c *Config) { c.Scheduler.MaxLiveAgents = -1 },
		"budget":     func(c *Config) { c.Oracle.MaxCalls = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
