// Package agentwire connects autonomous agents to a shared messaging
// substrate. An agent either streams over a persistent websocket to a node
// or polls an HTTP message store; both variants fan inbound messages out to
// registered handlers and can send replies to peers.
//
// Most applications:
//  1. Build an agent with New (or New + Start in one step via Start)
//  2. Register handlers with OnMessage, or supply a Responder so every
//     message is answered by a model
//  3. Stop the agent on shutdown
package agentwire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/agentwire/agent"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/responder"
	"github.com/hupe1980/agentwire/transport/stream"
)

// Kind selects the transport variant of an agent.
type Kind string

const (
	// KindNode streams over a websocket connection to a node.
	KindNode Kind = "node"
	// KindPolling polls an HTTP message store.
	KindPolling Kind = "polling"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindNode, KindPolling:
		return k, nil
	default:
		return "", fmt.Errorf("unknown agent kind %q (want node or polling)", s)
	}
}

// Options configures an agent built by New. Fields that only apply to one
// kind are ignored by the other.
type Options struct {
	Kind Kind
	Name string

	// Node
	AgentID        string
	NodeURL        string
	ReconnectDelay time.Duration
	ConnectTimeout time.Duration
	ErrorBackoff   time.Duration
	Dialer         stream.Dialer

	// Polling
	APIURL           string
	APIKey           string
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	InitialWatermark float64
	HTTPClient       *http.Client

	// Responder, when set, answers every inbound message through the agent.
	Responder *responder.Responder

	Now      func() time.Time
	Logger   logging.Logger
	Observer core.Observer
}

// Agent is the handle returned by New.
type Agent interface {
	core.Agent
	core.Subscriber
	core.Sender
	State() core.ConnectionState
}

var (
	_ Agent = (*agent.NodeAgent)(nil)
	_ Agent = (*agent.PollingAgent)(nil)
)

// New builds a stopped agent of the configured kind. Zero durations fall back
// to the variant's defaults.
func New(optFns ...func(o *Options)) (Agent, error) {
	opts := Options{Kind: KindNode}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		a   Agent
		err error
	)

	switch opts.Kind {
	case KindNode:
		a, err = agent.NewNodeAgent(func(o *agent.NodeOptions) {
			if opts.Name != "" {
				o.Name = opts.Name
			}
			o.AgentID = opts.AgentID
			o.URL = opts.NodeURL
			setDuration(&o.ReconnectDelay, opts.ReconnectDelay)
			setDuration(&o.ConnectTimeout, opts.ConnectTimeout)
			setDuration(&o.ErrorBackoff, opts.ErrorBackoff)
			o.Dialer = opts.Dialer
			o.Now = opts.Now
			o.Logger = opts.Logger
			o.Observer = opts.Observer
		})
	case KindPolling:
		a, err = agent.NewPollingAgent(func(o *agent.PollingOptions) {
			if opts.Name != "" {
				o.Name = opts.Name
			}
			o.APIURL = opts.APIURL
			o.APIKey = opts.APIKey
			setDuration(&o.PollInterval, opts.PollInterval)
			setDuration(&o.RequestTimeout, opts.RequestTimeout)
			o.InitialWatermark = opts.InitialWatermark
			o.HTTPClient = opts.HTTPClient
			o.Now = opts.Now
			o.Logger = opts.Logger
			o.Observer = opts.Observer
		})
	default:
		_, err = ParseKind(string(opts.Kind))
	}
	if err != nil {
		return nil, err
	}

	if opts.Responder != nil {
		a.OnMessage(responder.ReplyHandler(opts.Responder, a))
	}

	return a, nil
}

// Start builds an agent with New and starts it. The agent is returned
// unstarted alongside the error when the first connection fails.
func Start(ctx context.Context, optFns ...func(o *Options)) (Agent, error) {
	a, err := New(optFns...)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		return a, err
	}
	return a, nil
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
