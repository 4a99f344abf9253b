package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hupe1980/agentwire/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_TimeRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 250*int(time.Millisecond), time.UTC)
	msg := NewMessage("p1", "hi", "c1", at)

	assert.Equal(t, "p1", msg.FromPeerID)
	assert.Equal(t, "c1", msg.ConversationID)
	assert.InDelta(t, float64(at.Unix())+0.25, msg.Timestamp, 1e-6)
	assert.WithinDuration(t, at, msg.Time(), time.Millisecond)
}

func TestMessage_CopiesAreIndependent(t *testing.T) {
	msg := NewMessage("p1", "hi", "", time.Unix(1, 0))
	cp := msg
	cp.Content = "changed"
	assert.Equal(t, "hi", msg.Content)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("system").Valid())
}

func TestConnectionState_String(t *testing.T) {
	want := []string{"disconnected", "connecting", "connected", "reconnecting", "stopped"}
	for i, s := range AllStates() {
		assert.Equal(t, want[i], s.String())
	}
	assert.Equal(t, "unknown", ConnectionState(42).String())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("dial refused")

	var err error = &ConnectError{Endpoint: "ws://x", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ws://x")

	err = fmt.Errorf("wrapped: %w", &SendError{PeerID: "p1", Err: ErrNotConnected})
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "p1", sendErr.PeerID)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = &SendError{PeerID: "p2", StatusCode: 502, Err: errors.New("bad gateway")}
	assert.Contains(t, err.Error(), "HTTP 502")

	err = &MalformedMessageError{Reason: "missing content"}
	assert.Equal(t, "malformed message: missing content", err.Error())

	err = &HandlerError{HandlerID: "h1", PeerID: "p1", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestHandlerFunc(t *testing.T) {
	var got Message
	h := HandlerFunc(func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	require.NoError(t, h.HandleMessage(context.Background(), Message{FromPeerID: "p1"}))
	assert.Equal(t, "p1", got.FromPeerID)
}

func TestLoggerOrNoOp(t *testing.T) {
	assert.IsType(t, logging.NoOpLogger{}, LoggerOrNoOp(nil))

	structured := logging.NewSlogLogger(logging.LogLevelDebug, "json", false)
	scoped := WithComponent(structured, "dispatch")
	assert.NotSame(t, structured, scoped)
	assert.IsType(t, logging.NoOpLogger{}, WithComponent(nil, "x"))
}

func TestWithPeer(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = buf
	WithPeer(logging.NewLogger(cfg), "p1").Info("structured")
	assert.Contains(t, buf.String(), `"peer_id":"p1"`)

	buf.Reset()
	plain := logging.NewSlogAdapter(slog.New(slog.NewJSONHandler(buf, nil)))
	WithPeer(plain, "p2").Warn("plain", "k", "v")
	assert.Contains(t, buf.String(), `"peer_id":"p2"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	assert.IsType(t, logging.NoOpLogger{}, WithPeer(nil, "p3"))
}

func TestObserverOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpObserver{}, ObserverOrNoOp(nil))
}

func TestThrottle_SpacesCalls(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, th.Wait(ctx))
	require.NoError(t, th.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 2, th.Count())
}

func TestThrottle_ZeroIntervalNeverBlocks(t *testing.T) {
	th := NewThrottle(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	assert.Equal(t, 5, th.Count())
}

func TestThrottle_ContextCancelled(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}
