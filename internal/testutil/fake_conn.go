package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentwire/transport/stream"
)

// ErrConnDropped is returned by FakeConn.Read after the remote side drops the connection.
var ErrConnDropped = errors.New("fake connection dropped")

// ErrConnClosed is returned by FakeConn operations after Close.
var ErrConnClosed = errors.New("fake connection closed")

// FakeConn is an in-memory stream.Conn. Tests push inbound frames with
// Deliver and simulate a remote failure with Drop.
type FakeConn struct {
	inbound chan []byte
	dropped chan struct{}
	closed  chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

var _ stream.Conn = (*FakeConn)(nil)

// NewFakeConn returns an open connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound: make(chan []byte, 64),
		dropped: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Deliver queues an inbound frame.
func (c *FakeConn) Deliver(frame []byte) { c.inbound <- frame }

// Drop simulates the remote side closing the connection.
func (c *FakeConn) Drop() { c.dropOnce.Do(func() { close(c.dropped) }) }

// FailWrites makes every later Write return err.
func (c *FakeConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Read implements stream.Conn. Queued frames are drained before a drop is reported.
func (c *FakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.inbound:
		return f, nil
	default:
	}
	select {
	case f := <-c.inbound:
		return f, nil
	case <-c.dropped:
		return nil, ErrConnDropped
	case <-c.closed:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements stream.Conn and records the frame.
func (c *FakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsClosed() {
		return ErrConnClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))

	return nil
}

// Close implements stream.Conn.
func (c *FakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// IsClosed reports whether Close has been called.
func (c *FakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Written returns copies of every frame written so far.
func (c *FakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.written))
	copy(out, c.written)

	return out
}

// DialResult scripts one FakeDialer attempt.
type DialResult struct {
	Conn *FakeConn
	Err  error
}

// FakeDialer replays scripted results, then hands out fresh connections.
type FakeDialer struct {
	mu       sync.Mutex
	script   []DialResult
	attempts int
	conns    []*FakeConn
	urls     []string
}

var _ stream.Dialer = (*FakeDialer)(nil)

// NewFakeDialer creates a dialer that returns results in order.
func NewFakeDialer(results ...DialResult) *FakeDialer {
	return &FakeDialer{script: results}
}

// Dial implements stream.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (stream.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts++
	d.urls = append(d.urls, url)

	var res DialResult
	if len(d.script) > 0 {
		res, d.script = d.script[0], d.script[1:]
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Conn == nil {
		res.Conn = NewFakeConn()
	}
	d.conns = append(d.conns, res.Conn)

	return res.Conn, nil
}

// Attempts returns the number of Dial calls.
func (d *FakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.attempts
}

// Conns returns every connection handed out so far.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*FakeConn, len(d.conns))
	copy(out, d.conns)

	return out
}

// Last returns the most recent connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}

	return d.conns[len(d.conns)-1]
}
