package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/agentwire/codec"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/transport/poll"
)

// PollingOptions configures a PollingAgent.
type PollingOptions struct {
	Name   string
	APIURL string
	APIKey string

	PollInterval   time.Duration
	RequestTimeout time.Duration
	// InitialWatermark is the exclusive lower bound of the first poll.
	InitialWatermark float64

	HTTPClient *http.Client
	Now        func() time.Time
	Logger     logging.Logger
	Observer   core.Observer
}

// PollingAgent is the request/response variant: it periodically fetches
// messages newer than its watermark from an HTTP message store and submits
// replies with POST.
type PollingAgent struct {
	BaseAgent
	client    *poll.Client
	interval  time.Duration
	watermark *Watermark

	stateMu sync.Mutex
	state   core.ConnectionState
}

var (
	_ core.Agent      = (*PollingAgent)(nil)
	_ core.Sender     = (*PollingAgent)(nil)
	_ core.Subscriber = (*PollingAgent)(nil)
)

// NewPollingAgent builds a stopped PollingAgent.
func NewPollingAgent(optFns ...func(o *PollingOptions)) (*PollingAgent, error) {
	opts := PollingOptions{
		Name:           "polling-agent",
		PollInterval:   5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := poll.NewClient(opts.APIURL, func(o *poll.Options) {
		o.APIKey = opts.APIKey
		o.RequestTimeout = opts.RequestTimeout
		o.HTTPClient = opts.HTTPClient
	})
	if err != nil {
		return nil, err
	}

	return &PollingAgent{
		BaseAgent: NewBaseAgent(opts.Name, core.WithComponent(opts.Logger, "agent"), opts.Observer, opts.Now),
		client:    client,
		interval:  opts.PollInterval,
		watermark: NewWatermark(opts.InitialWatermark),
		state:     core.StateDisconnected,
	}, nil
}

// State returns the connection state.
func (a *PollingAgent) State() core.ConnectionState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	return a.state
}

// Watermark returns the current watermark.
func (a *PollingAgent) Watermark() float64 { return a.watermark.Load() }

// Start performs the first poll synchronously; if it fails the agent is not
// started and a *core.ConnectError is returned. The fetched batch is then
// dispatched by the polling loop.
func (a *PollingAgent) Start(ctx context.Context) error {
	runCtx, done, err := a.begin(ctx)
	if err != nil {
		return err
	}

	a.setState(core.StateConnecting)
	since := a.watermark.Load()
	records, err := a.client.Fetch(ctx, since)
	if err != nil {
		a.setState(core.StateDisconnected)
		a.abort()
		a.logger.Error("Initial poll failed", "endpoint", a.client.Endpoint(), "error", err)
		return &core.ConnectError{Endpoint: a.client.Endpoint(), Err: err}
	}
	a.setState(core.StateConnected)

	a.logger.Info("Agent started", "agent", a.name, "endpoint", a.client.Endpoint(), "interval", a.interval)
	go a.loop(runCtx, done, since, records)

	return nil
}

// Stop ends the polling loop, waiting (bounded by ctx) for the message being
// handled to finish.
func (a *PollingAgent) Stop(ctx context.Context) error {
	wasRunning, err := a.end(ctx, func() { a.setState(core.StateStopped) })
	if !wasRunning {
		return nil
	}
	a.logger.Info("Agent stopped", "agent", a.name, "watermark", a.watermark.Load())

	return err
}

// Send posts a message to the store. Non-success responses and transport
// errors are returned as *core.SendError; nothing is retried.
func (a *PollingAgent) Send(ctx context.Context, toPeerID, content, conversationID string) error {
	err := a.client.Submit(ctx, codec.Outbound{ToPeerID: toPeerID, Content: content, ConversationID: conversationID})
	if err != nil {
		a.logger.Warn("Send failed", "peer_id", toPeerID, "error", err)
	} else {
		a.logger.Debug("Message sent", "peer_id", toPeerID, "conversation_id", conversationID)
	}
	a.observer.MessageSent(a.name, err)

	return err
}

func (a *PollingAgent) loop(ctx context.Context, done chan struct{}, since float64, first []json.RawMessage) {
	defer close(done)

	a.process(ctx, since, first)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// cycle runs one poll. A failed request leaves the watermark untouched.
func (a *PollingAgent) cycle(ctx context.Context) {
	since := a.watermark.Load()
	records, err := a.client.Fetch(ctx, since)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("Poll failed", "since", since, "error", err)
		a.setState(core.StateReconnecting)
		return
	}

	if a.setState(core.StateConnected) == core.StateReconnecting {
		a.observer.Reconnected(a.name)
		a.logger.Info("Polling recovered", "since", since)
	}

	a.process(ctx, since, records)
}

// process dispatches records in order and advances the watermark after each
// one, whatever the handlers returned. Only records at or below since, the
// bound the batch was fetched with, are treated as replays; records sharing
// a timestamp or arriving out of order within the batch are all delivered.
func (a *PollingAgent) process(ctx context.Context, since float64, records []json.RawMessage) {
	for _, raw := range records {
		if ctx.Err() != nil {
			return
		}

		msg, err := codec.DecodeRecord(raw)
		if err != nil {
			a.logger.Warn("Dropping malformed record", "error", err)
			a.observer.MessageMalformed(a.name)
			if ts, ok := codec.SalvageTimestamp(raw); ok {
				a.advance(ts)
			}
			continue
		}

		if msg.Timestamp <= since {
			a.logger.Debug("Skipping already handled message", "peer_id", msg.FromPeerID, "timestamp", msg.Timestamp)
			continue
		}

		a.observer.MessageReceived(a.name)
		_ = a.HandleMessage(context.WithoutCancel(ctx), msg)
		a.advance(msg.Timestamp)
	}
}

func (a *PollingAgent) advance(ts float64) {
	if a.watermark.Advance(ts) {
		a.observer.WatermarkAdvanced(a.name, ts)
	}
}

// setState records s and returns the previous state.
func (a *PollingAgent) setState(s core.ConnectionState) core.ConnectionState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	from := a.state
	if from == s {
		return from
	}
	if from == core.StateStopped && s != core.StateConnecting {
		return from
	}
	a.state = s

	a.logger.Info("Connection state changed", "from", from.String(), "to", s.String(), "endpoint", a.client.Endpoint())
	a.observer.StateChanged(a.name, s)

	return from
}
