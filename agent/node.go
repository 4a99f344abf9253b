package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentwire/codec"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/transport/stream"
)

// NodeOptions configures a NodeAgent.
type NodeOptions struct {
	Name string
	// AgentID is announced to the node after every connect. Defaults to Name.
	AgentID string
	// URL of the node's websocket endpoint.
	URL string

	ReconnectDelay time.Duration
	ConnectTimeout time.Duration
	// ErrorBackoff is the pause after a frame that could not be processed.
	ErrorBackoff time.Duration

	Dialer   stream.Dialer
	Now      func() time.Time
	Logger   logging.Logger
	Observer core.Observer
}

// NodeAgent is the streaming variant: it keeps one websocket connection to a
// node open, pumps inbound frames into its handlers and sends replies on the
// same connection.
type NodeAgent struct {
	BaseAgent
	manager      *stream.Manager
	errorBackoff time.Duration
}

var (
	_ core.Agent      = (*NodeAgent)(nil)
	_ core.Sender     = (*NodeAgent)(nil)
	_ core.Subscriber = (*NodeAgent)(nil)
)

// NewNodeAgent builds a disconnected NodeAgent.
func NewNodeAgent(optFns ...func(o *NodeOptions)) (*NodeAgent, error) {
	opts := NodeOptions{
		Name:           "node-agent",
		ReconnectDelay: 5 * time.Second,
		ConnectTimeout: 30 * time.Second,
		ErrorBackoff:   time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.AgentID == "" {
		opts.AgentID = opts.Name
	}

	logger := core.WithComponent(opts.Logger, "agent")
	manager, err := stream.NewManager(func(o *stream.Options) {
		o.URL = opts.URL
		o.AgentID = opts.AgentID
		o.Name = opts.Name
		o.ReconnectDelay = opts.ReconnectDelay
		o.ConnectTimeout = opts.ConnectTimeout
		o.Dialer = opts.Dialer
		o.Logger = opts.Logger
		o.Observer = opts.Observer
	})
	if err != nil {
		return nil, err
	}

	return &NodeAgent{
		BaseAgent:    NewBaseAgent(opts.Name, logger, opts.Observer, opts.Now),
		manager:      manager,
		errorBackoff: opts.ErrorBackoff,
	}, nil
}

// State returns the connection state.
func (a *NodeAgent) State() core.ConnectionState { return a.manager.State() }

// Start connects to the node and launches the inbound pump. A failed first
// connection is returned as *core.ConnectError.
func (a *NodeAgent) Start(ctx context.Context) error {
	runCtx, done, err := a.begin(ctx)
	if err != nil {
		return err
	}

	if err := a.manager.Start(ctx); err != nil {
		a.abort()
		a.logger.Error("Failed to connect", "endpoint", a.manager.URL(), "error", err)
		return err
	}

	a.logger.Info("Agent started", "agent", a.name, "endpoint", a.manager.URL())
	go a.pump(runCtx, done)

	return nil
}

// Stop closes the connection and waits, bounded by ctx, for the pump to
// finish the message it is handling. No reconnect happens afterwards.
func (a *NodeAgent) Stop(ctx context.Context) error {
	var stopErr error
	wasRunning, err := a.end(ctx, func() { stopErr = a.manager.Stop() })
	if !wasRunning {
		return nil
	}
	if stopErr != nil {
		a.logger.Debug("Closing connection", "error", stopErr)
	}
	a.logger.Info("Agent stopped", "agent", a.name)

	return err
}

// Send writes a message frame to toPeerID. It fails with a *core.SendError
// wrapping core.ErrNotConnected while no connection is established; it is
// never retried.
func (a *NodeAgent) Send(ctx context.Context, toPeerID, content, conversationID string) error {
	frame, err := codec.EncodeMessage(codec.Outbound{ToPeerID: toPeerID, Content: content, ConversationID: conversationID})
	if err == nil {
		err = a.manager.Send(ctx, frame)
	}
	if err != nil {
		err = &core.SendError{PeerID: toPeerID, Err: err}
		a.logger.Warn("Send failed", "peer_id", toPeerID, "error", err)
	} else {
		a.logger.Debug("Message sent", "peer_id", toPeerID, "conversation_id", conversationID)
	}
	a.observer.MessageSent(a.name, err)

	return err
}

func (a *NodeAgent) pump(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		data, err := a.manager.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrStopped), ctx.Err() != nil:
				return
			case errors.Is(err, core.ErrTransportLost):
				if err := a.manager.Reconnect(ctx); err != nil {
					return
				}
				continue
			default:
				a.logger.Warn("Receive failed", "error", err)
				if !sleep(ctx, a.errorBackoff) {
					return
				}
				continue
			}
		}

		msg, ok, err := codec.DecodeFrame(data, a.now())
		if err != nil {
			a.logger.Warn("Dropping malformed frame", "error", err, "bytes", len(data))
			a.observer.MessageMalformed(a.name)
			if !sleep(ctx, a.errorBackoff) {
				return
			}
			continue
		}
		if !ok {
			a.logger.Debug("Ignoring frame", "type", codec.FrameType(data))
			continue
		}

		a.observer.MessageReceived(a.name)
		a.logger.Debug("Message received", "peer_id", msg.FromPeerID, "conversation_id", msg.ConversationID)

		// Handlers outlive Stop: only future receives are cancelled.
		_ = a.HandleMessage(context.WithoutCancel(ctx), msg)
	}
}
