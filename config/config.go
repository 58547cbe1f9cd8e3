// Package config loads agentkernel settings from a YAML file and
// AGENTKERNEL_* environment variables using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/scheduler"
)

// EnvPrefix prefixes every environment override, e.g.
// AGENTKERNEL_ORACLE_PROVIDER=openai.
const EnvPrefix = "AGENTKERNEL"

// Config represents the full agentkernel configuration
type Config struct {
	Agent     core.AgentConfig `mapstructure:"agent"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Memory    MemoryConfig     `mapstructure:"memory"`
	Oracle    OracleConfig     `mapstructure:"oracle"`
	Tools     ToolsConfig      `mapstructure:"tools"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// SchedulerConfig contains scheduler and spawn settings
type SchedulerConfig struct {
	MaxLiveAgents   int    `mapstructure:"max_live_agents"`
	Workers         int    `mapstructure:"workers"`
	ErrorPolicy     string `mapstructure:"error_policy"` // remove | requeue_retryable
	MaxErrorRetries int    `mapstructure:"max_error_retries"`
	MaxSpawnDepth   int    `mapstructure:"max_spawn_depth"`
	MaxChildren     int    `mapstructure:"max_children"`
}

// MemoryConfig selects the Memory backend
type MemoryConfig struct {
	Backend  string        `mapstructure:"backend"` // memory | redis
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// OracleConfig selects the model behind the reasoning oracle
type OracleConfig struct {
	Provider    string  `mapstructure:"provider"` // anthropic | openai | mock
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	MaxCalls    int     `mapstructure:"max_calls"`
	Stream      bool    `mapstructure:"stream"`
}

// ToolsConfig contains tool registry settings
type ToolsConfig struct {
	// ValidateArgs checks planned tool arguments against each tool's schema
	// before dispatch.
	ValidateArgs bool `mapstructure:"validate_args"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

// SetDefaults registers every key with its default so that environment
// overrides apply even without a config file.
func SetDefaults(v *viper.Viper) {
	d := core.DefaultAgentConfig

	v.SetDefault("agent.max_cycles", d.MaxCycles)
	v.SetDefault("agent.ttl", d.TTL)
	v.SetDefault("agent.clarity_threshold", d.ClarityThreshold)
	v.SetDefault("agent.history_limit", d.HistoryLimit)

	v.SetDefault("scheduler.max_live_agents", 32)
	v.SetDefault("scheduler.workers", 1)
	v.SetDefault("scheduler.error_policy", "remove")
	v.SetDefault("scheduler.max_error_retries", 3)
	v.SetDefault("scheduler.max_spawn_depth", 3)
	v.SetDefault("scheduler.max_children", 3)

	v.SetDefault("memory.backend", "memory")
	v.SetDefault("memory.redis_url", "redis://localhost:6379/0")
	v.SetDefault("memory.prefix", "agentkernel")
	v.SetDefault("memory.ttl", time.Duration(0))

	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 4096)
	v.SetDefault("oracle.max_calls", 0)
	v.SetDefault("oracle.stream", false)

	v.SetDefault("tools.validate_args", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// ConfigureEnv enables AGENTKERNEL_* overrides on v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load loads configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Agent.MaxCycles <= 0 {
		return fmt.Errorf("agent.max_cycles must be positive")
	}

	if c.Agent.TTL <= 0 {
		return fmt.Errorf("agent.ttl must be positive")
	}

	if c.Agent.ClarityThreshold < 0 || c.Agent.ClarityThreshold > 1 {
		return fmt.Errorf("agent.clarity_threshold must be within [0,1]")
	}

	if c.Scheduler.MaxLiveAgents <= 0 {
		return fmt.Errorf("scheduler.max_live_agents must be positive")
	}

	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}

	if _, err := scheduler.ParseErrorPolicy(c.Scheduler.ErrorPolicy); err != nil {
		return fmt.Errorf("scheduler.error_policy: %w", err)
	}

	validBackends := map[string]bool{"memory": true, "redis": true}
	if !validBackends[c.Memory.Backend] {
		return fmt.Errorf("invalid memory backend: %s (must be memory or redis)", c.Memory.Backend)
	}

	if c.Memory.Backend == "redis" && c.Memory.RedisURL == "" {
		return fmt.Errorf("memory.redis_url is required for the redis backend")
	}

	validProviders := map[string]bool{"anthropic": true, "openai": true, "mock": true}
	if !validProviders[c.Oracle.Provider] {
		return fmt.Errorf("invalid oracle provider: %s (must be anthropic, openai or mock)", c.Oracle.Provider)
	}

	if c.Oracle.MaxCalls < 0 {
		return fmt.Errorf("oracle.max_calls must not be negative")
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
