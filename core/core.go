package core

import "github.com/hupe1980/agentwire/logging"

// LoggerOrNoOp guarantees a non-nil logger by substituting a NoOpLogger when
// l is nil. Constructors run their Logger option through it once so the rest
// of a component can log unconditionally.
func LoggerOrNoOp(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NoOpLogger{}
	}
	return l
}

// WithComponent scopes l to a component name when the logger supports it
// (the structured logger does); other loggers are returned unchanged.
func WithComponent(l logging.Logger, component string) logging.Logger {
	l = LoggerOrNoOp(l)
	if c, ok := l.(interface {
		WithComponent(string) *logging.StructuredLogger
	}); ok {
		return c.WithComponent(component)
	}
	return l
}

// WithPeer scopes l to a remote peer. Loggers without WithPeer get a
// peer_id argument on every entry instead.
func WithPeer(l logging.Logger, peerID string) logging.Logger {
	l = LoggerOrNoOp(l)
	if c, ok := l.(interface {
		WithPeer(string) *logging.StructuredLogger
	}); ok {
		return c.WithPeer(peerID)
	}
	if _, ok := l.(logging.NoOpLogger); ok {
		return l
	}
	return peerLogger{Logger: l, peerID: peerID}
}

type peerLogger struct {
	logging.Logger
	peerID string
}

func (p peerLogger) Debug(msg string, args ...any) { p.Logger.Debug(msg, p.with(args)...) }
func (p peerLogger) Info(msg string, args ...any)  { p.Logger.Info(msg, p.with(args)...) }
func (p peerLogger) Warn(msg string, args ...any)  { p.Logger.Warn(msg, p.with(args)...) }
func (p peerLogger) Error(msg string, args ...any) { p.Logger.Error(msg, p.with(args)...) }

func (p peerLogger) with(args []any) []any {
	return append([]any{"peer_id", p.peerID}, args...)
}
