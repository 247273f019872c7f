// Package logging provides a minimal logging interface and adapters for the
// agent runtime.
//
// The Logger interface defines the standard leveled methods (Debug, Info,
// Warn, Error) that the loader, manager and bridge use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RuntimeLogger with component/agent/run scoping and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := agentrt.New(agentrt.WithLogger(logger))
//
// Messages use dotted event names ("agent.load.start") and key/value args.
package logging
