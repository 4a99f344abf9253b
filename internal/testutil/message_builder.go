package testutil

import (
	"encoding/json"
	"time"

	"github.com/hupe1980/agentwire/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("p1").Content("hi").At(1.5).Build()
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder with sender "peer" and timestamp 1.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: core.Message{FromPeerID: "peer", Timestamp: 1}}
}

// From sets the sender (chainable).
func (b *MessageBuilder) From(id string) *MessageBuilder { b.msg.FromPeerID = id; return b }

// Content sets the text (chainable).
func (b *MessageBuilder) Content(c string) *MessageBuilder { b.msg.Content = c; return b }

// Conversation sets the conversation id (chainable).
func (b *MessageBuilder) Conversation(id string) *MessageBuilder { b.msg.ConversationID = id; return b }

// At sets the timestamp in unix seconds (chainable).
func (b *MessageBuilder) At(ts float64) *MessageBuilder { b.msg.Timestamp = ts; return b }

// AtTime sets the timestamp from a time.Time (chainable).
func (b *MessageBuilder) AtTime(t time.Time) *MessageBuilder {
	b.msg.Timestamp = core.UnixSeconds(t)
	return b
}

// Build returns the message.
func (b *MessageBuilder) Build() core.Message { return b.msg }

// MessageFrame renders an inbound streamed message frame.
func MessageFrame(from, content, conversationID string) []byte {
	payload := map[string]any{"fromAgentId": from, "content": content}
	if conversationID != "" {
		payload["conversationId"] = conversationID
	}
	data, _ := json.Marshal(map[string]any{"type": "message", "payload": payload})
	return data
}

// Record renders one polled record.
func Record(m core.Message) map[string]any {
	r := map[string]any{"fromAgentId": m.FromPeerID, "content": m.Content, "timestamp": m.Timestamp}
	if m.ConversationID != "" {
		r["conversationId"] = m.ConversationID
	}
	return r
}

// Batch renders a polling response envelope.
func Batch(msgs ...core.Message) []byte {
	records := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, Record(m))
	}
	data, _ := json.Marshal(map[string]any{"messages": records})
	return data
}
