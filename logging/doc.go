// Package logging provides a minimal logging interface and adapters for firegraph.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) with slog-style key/value arguments. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - GraphLogger, a slog based logger with thread/component scoping and
//     helpers for steps, workers, tool and model calls
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(decider, coordinator, store, func(o *engine.Options) { o.Logger = logger })
package logging
