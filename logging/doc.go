// Package logging provides a minimal logging interface and adapters for agentwire.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, transports and the dispatcher use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component / agent / peer scoping
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a, err := agentwire.New(func(o *agentwire.Options) { o.Logger = logger })
//
// Arguments after the message are slog key/value pairs, e.g.
// logger.Warn("send failed", "peer_id", id, "error", err).
package logging
