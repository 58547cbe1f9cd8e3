// Package logging provides a minimal logging interface and adapters for agentkernel.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, the scheduler and the tool registry use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component / agent scoped attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	sched := scheduler.New(func(o *scheduler.Options) { o.Logger = logger.WithComponent("scheduler") })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
