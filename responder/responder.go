// Package responder decides what an agent replies. A Responder reads the
// sender's bounded history from a conversation store, asks a model for a
// completion and records the exchange; ReplyHandler plugs it into an agent
// so replies go back through the agent's Sender.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentwire/conversation"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/internal/util"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/model"
)

// Default replies used when the model fails or returns nothing.
const (
	DefaultFallbackReply = "Sorry, I encountered an error processing your message."
	DefaultEmptyReply    = "Sorry, I couldn't process that request."
)

// Options configures a Responder.
type Options struct {
	// Instruction is the system prompt. Static text and provider output are
	// rendered as a text/template with agent_name, peer_id and conversation_id.
	Instruction Instruction
	AgentName   string

	// Store holds per-peer history. Defaults to an in-memory store capped at HistoryLimit.
	Store        core.ConversationStore
	HistoryLimit int

	// CallDelay is the minimum spacing between model calls.
	CallDelay time.Duration

	// FallbackReply is sent when the model call fails. Empty disables the
	// fallback and the error is returned instead.
	FallbackReply string
	// EmptyReply replaces a blank completion.
	EmptyReply string

	Logger logging.Logger
}

// Responder produces replies with a model and keeps conversation history.
type Responder struct {
	model    model.Model
	opts     Options
	store    core.ConversationStore
	throttle *core.Throttle
	logger   logging.Logger
}

// New creates a Responder backed by m.
func New(m model.Model, optFns ...func(o *Options)) *Responder {
	opts := Options{
		Instruction:   NewInstructionFromText("You are {{.agent_name}}, a helpful agent in a peer-to-peer network."),
		AgentName:     "agent",
		HistoryLimit:  conversation.DefaultMaxTurns,
		CallDelay:     500 * time.Millisecond,
		FallbackReply: DefaultFallbackReply,
		EmptyReply:    DefaultEmptyReply,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	store := opts.Store
	if store == nil {
		store = conversation.NewInMemoryStore(func(o *conversation.Options) { o.MaxTurns = opts.HistoryLimit })
	}

	return &Responder{
		model:    m,
		opts:     opts,
		store:    store,
		throttle: core.NewThrottle(opts.CallDelay),
		logger:   core.WithComponent(opts.Logger, "responder"),
	}
}

// Store returns the conversation store.
func (r *Responder) Store() core.ConversationStore { return r.store }

// Respond returns the reply to msg. On success the inbound content and the
// reply are appended to the sender's history. A failed model call leaves the
// history untouched and yields FallbackReply.
func (r *Responder) Respond(ctx context.Context, msg core.Message) (string, error) {
	instructions, err := r.instructions(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	turns := append(r.store.History(msg.FromPeerID), core.UserTurn(msg.Content))

	if err := r.throttle.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := r.model.Generate(ctx, model.Request{Instructions: instructions, Turns: turns})
	r.logCall(resp, time.Since(start), err)

	if err != nil {
		if r.opts.FallbackReply == "" {
			return "", fmt.Errorf("generate reply: %w", err)
		}
		return r.opts.FallbackReply, nil
	}

	reply := resp.Text
	if strings.TrimSpace(reply) == "" {
		reply = r.opts.EmptyReply
	}

	r.store.Append(msg.FromPeerID, core.UserTurn(msg.Content), core.AssistantTurn(reply))

	return reply, nil
}

func (r *Responder) instructions(ctx context.Context, msg core.Message) (string, error) {
	text, err := r.opts.Instruction.Resolve(ctx, msg)
	if err != nil {
		return "", err
	}
	return util.RenderTemplate(text, map[string]any{
		"agent_name":      r.opts.AgentName,
		"peer_id":         msg.FromPeerID,
		"conversation_id": msg.ConversationID,
	})
}

func (r *Responder) logCall(resp *model.Response, dur time.Duration, err error) {
	info := r.model.Info()
	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	if sl, ok := r.logger.(interface {
		LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
	}); ok {
		sl.LogLLMCall(info.Name, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("LLM call failed", "model", info.Name, "duration", dur, "error", err)
		return
	}
	r.logger.Info("LLM call completed", "model", info.Name, "token_count", tokens, "duration", dur)
}

// ReplyHandler adapts r into a handler that sends every non-empty reply back
// to the message's sender through s, preserving the conversation id.
func ReplyHandler(r *Responder, s core.Sender) core.Handler {
	return core.HandlerFunc(func(ctx context.Context, msg core.Message) error {
		reply, err := r.Respond(ctx, msg)
		if err != nil {
			return err
		}
		if reply == "" {
			return nil
		}
		return s.Send(ctx, msg.FromPeerID, reply, msg.ConversationID)
	})
}
