package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type inbox struct {
	mu   sync.Mutex
	msgs []core.Message
}

func (i *inbox) handler() core.Handler {
	return core.HandlerFunc(func(_ context.Context, msg core.Message) error {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.msgs = append(i.msgs, msg)
		return nil
	})
}

func (i *inbox) all() []core.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]core.Message(nil), i.msgs...)
}

func (i *inbox) count() int { return len(i.all()) }

func newNodeAgent(t *testing.T, dialer *testutil.FakeDialer) *NodeAgent {
	t.Helper()
	fixed := time.Unix(1700000000, 0)
	a, err := NewNodeAgent(func(o *NodeOptions) {
		o.Name = "node-1"
		o.URL = "ws://node.test/ws"
		o.ReconnectDelay = 10 * time.Millisecond
		o.ErrorBackoff = time.Millisecond
		o.Dialer = dialer
		o.Now = func() time.Time { return fixed }
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestNodeAgent_ReceivesAndDispatches(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	a := newNodeAgent(t, dialer)
	box := &inbox{}
	a.OnMessage(box.handler())

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Running())
	assert.Equal(t, core.StateConnected, a.State())

	conn := dialer.Last()
	register := conn.Written()
	require.Len(t, register, 1)
	assert.Equal(t, "node-1", gjson.GetBytes(register[0], "agentId").String())

	conn.Deliver([]byte(`{"type":"peers","list":[]}`))
	conn.Deliver([]byte(`{"type":"message","payload":{"content":"no sender"}}`))
	conn.Deliver(testutil.MessageFrame("p1", "hello", "c1"))

	require.Eventually(t, func() bool { return box.count() == 1 }, time.Second, 5*time.Millisecond)
	msg := box.all()[0]
	assert.Equal(t, "p1", msg.FromPeerID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "c1", msg.ConversationID)
	assert.Equal(t, float64(1700000000), msg.Timestamp)
}

func TestNodeAgent_StartFailure(t *testing.T) {
	a := newNodeAgent(t, testutil.NewFakeDialer(testutil.DialResult{Err: errors.New("refused")}))

	var cerr *core.ConnectError
	require.ErrorAs(t, a.Start(context.Background()), &cerr)
	assert.False(t, a.Running())
	assert.Equal(t, core.StateDisconnected, a.State())
}

func TestNodeAgent_DropReconnectsWithoutRedelivery(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	a := newNodeAgent(t, dialer)
	box := &inbox{}
	a.OnMessage(box.handler())
	require.NoError(t, a.Start(context.Background()))

	first := dialer.Last()
	first.Deliver(testutil.MessageFrame("p1", "before", ""))
	require.Eventually(t, func() bool { return box.count() == 1 }, time.Second, 5*time.Millisecond)

	first.Drop()
	require.Eventually(t, func() bool {
		return dialer.Attempts() == 2 && a.State() == core.StateConnected
	}, time.Second, 5*time.Millisecond)

	dialer.Last().Deliver(testutil.MessageFrame("p1", "after", ""))
	require.Eventually(t, func() bool { return box.count() == 2 }, time.Second, 5*time.Millisecond)

	msgs := box.all()
	assert.Equal(t, "before", msgs[0].Content)
	assert.Equal(t, "after", msgs[1].Content)
}

func TestNodeAgent_StopThenDropDoesNotReconnect(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	a := newNodeAgent(t, dialer)
	require.NoError(t, a.Start(context.Background()))
	conn := dialer.Last()

	require.NoError(t, a.Stop(context.Background()))
	conn.Drop()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, core.StateStopped, a.State())
	assert.Equal(t, 1, dialer.Attempts())
	assert.False(t, a.Running())
	require.NoError(t, a.Stop(context.Background()))
}

func TestNodeAgent_Send(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	a := newNodeAgent(t, dialer)

	err := a.Send(context.Background(), "p2", "early", "")
	var sendErr *core.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, core.ErrNotConnected)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Send(context.Background(), "p2", "hi there", "c7"))

	written := dialer.Last().Written()
	require.Len(t, written, 2)
	assert.JSONEq(t, `{"type":"message","payload":{"toAgentId":"p2","content":"hi there","conversationId":"c7"}}`, string(written[1]))
}

func TestNodeAgent_StopDoesNotInterruptHandler(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	a := newNodeAgent(t, dialer)

	entered := make(chan struct{})
	release := make(chan struct{})
	var handlerCtxErr error
	a.OnMessage(core.HandlerFunc(func(ctx context.Context, _ core.Message) error {
		close(entered)
		<-release
		handlerCtxErr = ctx.Err()
		return nil
	}))
	require.NoError(t, a.Start(context.Background()))
	dialer.Last().Deliver(testutil.MessageFrame("p1", "slow", ""))
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- a.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while handler was still running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-stopped)
	assert.NoError(t, handlerCtxErr)
}

func TestNodeAgent_StartTwice(t *testing.T) {
	a := newNodeAgent(t, testutil.NewFakeDialer())
	require.NoError(t, a.Start(context.Background()))
	assert.ErrorIs(t, a.Start(context.Background()), core.ErrAlreadyRunning)
}
