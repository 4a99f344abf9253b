package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by streaming sends while no connection is established.
	ErrNotConnected = errors.New("not connected to substrate")

	// ErrStopped is returned by transport operations once Stop has been called.
	ErrStopped = errors.New("agent stopped")

	// ErrAlreadyRunning is returned by Start on an agent that is already started.
	ErrAlreadyRunning = errors.New("agent is already running")

	// ErrTransportLost marks an unexpected loss of a live connection. It is
	// recovered internally by reconnecting and never surfaces to callers.
	ErrTransportLost = errors.New("transport connection lost")
)

// ConnectError reports that the very first connection attempt made by Start
// failed. It is the only connection error propagated to callers.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying dial or request error.
func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a failed outbound message. StatusCode is set when the
// substrate answered with a non-success HTTP status.
type SendError struct {
	PeerID     string
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("send to %s: HTTP %d: %v", e.PeerID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("send to %s: %v", e.PeerID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SendError) Unwrap() error { return e.Err }

// MalformedMessageError reports one inbound item that could not be decoded or
// validated. The item is dropped and processing continues.
type MalformedMessageError struct {
	Reason string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

// Unwrap returns the underlying decode error, if any.
func (e *MalformedMessageError) Unwrap() error { return e.Err }

// HandlerError reports that a registered handler failed (returned an error
// or panicked) while processing a message.
type HandlerError struct {
	HandlerID string
	PeerID    string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed for message from %s: %v", e.HandlerID, e.PeerID, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error { return e.Err }
