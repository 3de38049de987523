// Package logging provides a tiny abstraction over structured loggers so
// downstream code can depend on a minimal interface (Logger) while allowing
// users to plug slog, zerolog or their own implementation.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that agents, flows and the runner use for observability. This
// package includes:
//
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter for zerolog based deployments
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := weathermesh.New(rootAgent, weathermesh.WithLogger(logger))
package logging
