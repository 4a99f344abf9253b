// Package stream owns the persistent connection of a streaming ("node") agent.
//
// A Manager is an explicit state machine over one logical connection:
//
//	Disconnected -> Connecting -> Connected <-> Reconnecting
//	any -> Stopped
//
// Only the Manager touches the raw Conn; callers go through Receive and Send.
// After an unexpected loss Reconnect retries forever with a fixed delay until
// it succeeds or Stop is called. Stop is terminal for automatic reconnects.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentwire/codec"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
)

// Options configures a Manager.
type Options struct {
	// URL is the substrate endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// AgentID is announced in a register frame after every successful
	// connect. Empty disables registration.
	AgentID string
	// Name identifies the owning agent in logs and observations.
	Name string

	ReconnectDelay time.Duration
	ConnectTimeout time.Duration

	Dialer   Dialer
	Logger   logging.Logger
	Observer core.Observer
}

// Manager is safe for concurrent use.
type Manager struct {
	opts     Options
	logger   logging.Logger
	observer core.Observer

	mu      sync.Mutex
	state   core.ConnectionState
	conn    Conn
	stopped chan struct{}

	writeMu sync.Mutex
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{
		ReconnectDelay: 5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.URL == "" {
		return nil, errors.New("stream: URL is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}

	return &Manager{
		opts:     opts,
		logger:   core.WithComponent(opts.Logger, "stream"),
		observer: core.ObserverOrNoOp(opts.Observer),
		state:    core.StateDisconnected,
		stopped:  make(chan struct{}),
	}, nil
}

// URL returns the configured endpoint.
func (m *Manager) URL() string { return m.opts.URL }

// State returns the current connection state.
func (m *Manager) State() core.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Start performs the initial connection. It is the only place a connection
// failure is returned to the caller, as a *core.ConnectError.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case core.StateConnecting, core.StateConnected, core.StateReconnecting:
		m.mu.Unlock()
		return core.ErrAlreadyRunning
	case core.StateStopped:
		m.stopped = make(chan struct{})
	}
	m.setStateLocked(core.StateConnecting)
	m.mu.Unlock()

	conn, err := m.connect(ctx)
	if err != nil {
		m.mu.Lock()
		if m.state == core.StateConnecting {
			m.setStateLocked(core.StateDisconnected)
		}
		m.mu.Unlock()

		return &core.ConnectError{Endpoint: m.opts.URL, Err: err}
	}

	return m.publish(conn)
}

// Stop closes the live connection and disables automatic reconnects. Any
// goroutine waiting in Reconnect is released. Stop is idempotent.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.state == core.StateStopped {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(core.StateStopped)
	close(m.stopped)
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// Receive blocks for the next inbound frame. A read failure discards the
// connection and returns an error wrapping core.ErrTransportLost; once
// stopped it returns core.ErrStopped.
func (m *Manager) Receive(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	if m.state == core.StateStopped {
		m.mu.Unlock()
		return nil, core.ErrStopped
	}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("%w: no live connection", core.ErrTransportLost)
	}

	data, err := conn.Read(ctx)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if stopped := m.lost(conn); stopped {
		return nil, core.ErrStopped
	}

	m.logger.Warn("Connection lost", "endpoint", m.opts.URL, "error", err)

	return nil, fmt.Errorf("%w: %w", core.ErrTransportLost, err)
}

// Reconnect re-establishes the connection after a loss. It waits
// ReconnectDelay before every attempt and retries until it succeeds, Stop
// is called (core.ErrStopped) or ctx is done.
func (m *Manager) Reconnect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		m.mu.Lock()
		if m.state == core.StateStopped {
			m.mu.Unlock()
			return core.ErrStopped
		}
		if m.state == core.StateConnected && m.conn != nil {
			m.mu.Unlock()
			return nil
		}
		m.setStateLocked(core.StateReconnecting)
		stopped := m.stopped
		m.mu.Unlock()

		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-stopped:
			timer.Stop()
			return core.ErrStopped
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		conn, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("Reconnect attempt failed", "endpoint", m.opts.URL, "attempt", attempt, "error", err)
			continue
		}

		if err := m.publish(conn); err != nil {
			return err
		}

		m.observer.Reconnected(m.opts.Name)
		m.logger.Info("Reconnected", "endpoint", m.opts.URL, "attempts", attempt)

		return nil
	}
}

// Send writes one frame on the live connection. Writes are serialized.
func (m *Manager) Send(ctx context.Context, frame []byte) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if conn == nil || state != core.StateConnected {
		return core.ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.Write(ctx, frame)
}

// connect dials with ConnectTimeout and sends the register frame on the new connection.
func (m *Manager) connect(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	conn, err := m.opts.Dialer.Dial(dialCtx, m.opts.URL)
	if err != nil {
		return nil, err
	}

	if m.opts.AgentID != "" {
		frame, err := codec.EncodeRegister(m.opts.AgentID)
		if err == nil {
			err = conn.Write(dialCtx, frame)
		}
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("register agent %s: %w", m.opts.AgentID, err)
		}
		m.logger.Debug("Registered with node", "agent_id", m.opts.AgentID)
	}

	return conn, nil
}

// publish installs conn as the live connection unless Stop won the race.
func (m *Manager) publish(conn Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == core.StateStopped {
		_ = conn.Close()
		return core.ErrStopped
	}
	m.conn = conn
	m.setStateLocked(core.StateConnected)

	return nil
}

// lost discards conn if it is still the live one. It reports whether the
// manager has been stopped.
func (m *Manager) lost(conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == conn {
		m.conn = nil
		_ = conn.Close()
	}
	if m.state == core.StateStopped {
		return true
	}
	m.setStateLocked(core.StateReconnecting)

	return false
}

func (m *Manager) setStateLocked(s core.ConnectionState) {
	if m.state == s {
		return
	}
	from := m.state
	m.state = s

	if sl, ok := m.logger.(interface {
		LogStateChange(from, to, endpoint string)
	}); ok {
		sl.LogStateChange(from.String(), s.String(), m.opts.URL)
	} else {
		m.logger.Info("Connection state changed", "from", from.String(), "to", s.String(), "endpoint", m.opts.URL)
	}
	m.observer.StateChanged(m.opts.Name, s)
}
