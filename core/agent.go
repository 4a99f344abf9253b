package core

import "context"

// Agent defines the capability every agentwire agent implements.
//
// Variants (streaming node, polling client) are selected at construction time
// and differ only in how they reach the substrate. Implementations must:
//   - Return a *ConnectError from Start when the first connection attempt fails
//   - Recover mid-session transport failures internally
//   - Never reconnect once Stop has been called
//   - Deliver each inbound message to HandleMessage exactly once
type Agent interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleMessage(ctx context.Context, msg Message) error
}

// Sender emits outbound messages to a peer. ConversationID may be empty.
type Sender interface {
	Send(ctx context.Context, toPeerID, content, conversationID string) error
}

// Handler processes one inbound message.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc is a functional adapter to allow ordinary functions to be used as Handlers.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Registration is the token returned when a handler is registered.
// Unregister removes exactly that handler and is safe to call more than once.
type Registration interface {
	ID() string
	Unregister()
}

// Subscriber is implemented by agents that fan inbound messages out to handlers.
type Subscriber interface {
	OnMessage(h Handler) Registration
}

// ConversationStore holds bounded, ordered per-peer histories. Peers are
// created lazily on first access and never pre-declared.
type ConversationStore interface {
	Append(peerID string, turns ...Turn)
	History(peerID string) []Turn
}
