package cli

import (
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentkernel"
	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/memory/redis"
	"github.com/hupe1980/agentkernel/model"
	"github.com/hupe1980/agentkernel/model/anthropic"
	"github.com/hupe1980/agentkernel/model/openai"
	"github.com/hupe1980/agentkernel/oracle"
	"github.com/hupe1980/agentkernel/scheduler"
)

// runtime holds everything a command needs to drive agents.
type runtime struct {
	kernel *agentkernel.Kernel
	close  func() error
}

func newRuntime(cfg *config.Config, logOut io.Writer) (*runtime, error) {
	logger := newLogger(cfg.Logging, logOut)

	o, err := newOracle(cfg.Oracle, logger)
	if err != nil {
		return nil, err
	}

	provider, closeFn, err := newMemory(cfg.Memory)
	if err != nil {
		return nil, err
	}

	policy, err := scheduler.ParseErrorPolicy(cfg.Scheduler.ErrorPolicy)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	k, err := agentkernel.New(o, func(opts *agentkernel.Options) {
		opts.Agent = cfg.Agent
		opts.Memory = provider
		opts.Logger = logger
		opts.ValidateToolArgs = cfg.Tools.ValidateArgs
		opts.Scheduler = scheduler.Options{
			MaxLiveAgents:   cfg.Scheduler.MaxLiveAgents,
			Workers:         cfg.Scheduler.Workers,
			ErrorPolicy:     policy,
			MaxErrorRetries: cfg.Scheduler.MaxErrorRetries,
		}
		opts.Spawn = scheduler.SpawnOptions{
			MaxDepth:    cfg.Scheduler.MaxSpawnDepth,
			MaxChildren: cfg.Scheduler.MaxChildren,
		}
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	return &runtime{kernel: k, close: closeFn}, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Level),
		Format: cfg.Format,
		Output: out,
	})
}

// newOracle selects the reasoning backend. The mock provider runs offline and
// answers every goal by echoing it through the echo tool.
func newOracle(cfg config.OracleConfig, logger logging.Logger) (core.Oracle, error) {
	var m model.Model

	switch cfg.Provider {
	case "mock":
		return oracle.Echo("echo"), nil
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Provider)
	}

	return oracle.New(m, func(o *oracle.Options) {
		o.MaxCalls = cfg.MaxCalls
		o.Stream = cfg.Stream
		o.Logger = logger
	}), nil
}

func newMemory(cfg config.MemoryConfig) (memory.Provider, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.InMemoryProvider(), func() error { return nil }, nil
	case "redis":
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		provider := redis.Provider(client, func(o *redis.Options) {
			if cfg.Prefix != "" {
				o.Prefix = cfg.Prefix
			}
			o.TTL = cfg.TTL
		})

		return provider, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory backend: %s", cfg.Backend)
	}
}
