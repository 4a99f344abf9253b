package core

import (
	"fmt"
	"math"
	"time"
)

// Role tags a conversation turn.
type Role string

const (
	// RoleUser marks content received from a peer.
	RoleUser Role = "user"
	// RoleAssistant marks content produced by this agent.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one conversational message exchanged over the substrate.
//
// Messages are plain values: components receive copies and never mutate them.
// Timestamp is expressed in unix seconds (fractional) because that is how the
// polling substrate orders and filters records; for streamed frames it is the
// receipt time captured by the agent's clock.
type Message struct {
	FromPeerID     string  `json:"fromAgentId"`
	Content        string  `json:"content"`
	ConversationID string  `json:"conversationId,omitempty"`
	Timestamp      float64 `json:"timestamp"`
}

// NewMessage constructs a Message stamped with the given time.
func NewMessage(from, content, conversationID string, at time.Time) Message {
	return Message{
		FromPeerID:     from,
		Content:        content,
		ConversationID: conversationID,
		Timestamp:      UnixSeconds(at),
	}
}

// Time converts the message timestamp back into a time.Time.
func (m Message) Time() time.Time {
	sec, frac := math.Modf(m.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// String implements fmt.Stringer for log output.
func (m Message) String() string {
	return fmt.Sprintf("Message{from=%s conversation=%s ts=%.3f len=%d}",
		m.FromPeerID, m.ConversationID, m.Timestamp, len(m.Content))
}

// UnixSeconds converts t into fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Turn is one role-tagged utterance in a peer's conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }
