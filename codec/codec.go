package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentwire/core"
	"github.com/tidwall/gjson"
)

// Frame types understood by the streaming substrate.
const (
	TypeRegister = "register"
	TypeMessage  = "message"
)

// Outbound is the payload of a message addressed to a peer. It is the body of
// a polling POST and the "payload" of a streamed message frame.
type Outbound struct {
	ToPeerID       string `json:"toAgentId"`
	Content        string `json:"content"`
	ConversationID string `json:"conversationId,omitempty"`
}

type registerFrame struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
}

type messageFrame struct {
	Type    string   `json:"type"`
	Payload Outbound `json:"payload"`
}

type inboundPayload struct {
	FromPeerID     *string `json:"fromAgentId"`
	Content        *string `json:"content"`
	ConversationID string  `json:"conversationId"`
}

type record struct {
	FromPeerID     *string  `json:"fromAgentId"`
	Content        *string  `json:"content"`
	ConversationID string   `json:"conversationId"`
	Timestamp      *float64 `json:"timestamp"`
}

type batch struct {
	Messages []json.RawMessage `json:"messages"`
}

// EncodeRegister builds the registration frame sent once per established connection.
func EncodeRegister(agentID string) ([]byte, error) {
	return json.Marshal(registerFrame{Type: TypeRegister, AgentID: agentID})
}

// EncodeMessage builds a streamed message frame.
func EncodeMessage(out Outbound) ([]byte, error) {
	if out.ToPeerID == "" {
		return nil, fmt.Errorf("encode message: empty recipient")
	}
	return json.Marshal(messageFrame{Type: TypeMessage, Payload: out})
}

// EncodeOutbound builds the body of a polling submission.
func EncodeOutbound(out Outbound) ([]byte, error) {
	if out.ToPeerID == "" {
		return nil, fmt.Errorf("encode message: empty recipient")
	}
	return json.Marshal(out)
}

// FrameType returns the "type" field of a streamed frame, or "" when absent.
func FrameType(data []byte) string {
	return gjson.GetBytes(data, "type").String()
}

// DecodeFrame parses one streamed frame. The boolean is false for well-formed
// frames of a type other than "message", which callers ignore. Streamed
// frames carry no timestamp so the message is stamped with receivedAt.
func DecodeFrame(data []byte, receivedAt time.Time) (core.Message, bool, error) {
	if !gjson.ValidBytes(data) {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "invalid JSON frame"}
	}
	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "frame without type"}
	}
	if kind.String() != TypeMessage {
		return core.Message{}, false, nil
	}

	raw := gjson.GetBytes(data, "payload")
	if !raw.IsObject() {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "message frame without payload"}
	}

	var p inboundPayload
	if err := json.Unmarshal([]byte(raw.Raw), &p); err != nil {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "decode payload", Err: err}
	}
	if p.FromPeerID == nil || *p.FromPeerID == "" {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "missing fromAgentId"}
	}
	if p.Content == nil {
		return core.Message{}, false, &core.MalformedMessageError{Reason: "missing content"}
	}

	return core.NewMessage(*p.FromPeerID, *p.Content, p.ConversationID, receivedAt), true, nil
}

// DecodeBatch splits a polling response envelope into raw records so each can
// be decoded (and rejected) on its own.
func DecodeBatch(body []byte) ([]json.RawMessage, error) {
	var b batch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode message batch: %w", err)
	}
	return b.Messages, nil
}

// DecodeRecord parses one polled record. Every field but conversationId is required.
func DecodeRecord(raw json.RawMessage) (core.Message, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return core.Message{}, &core.MalformedMessageError{Reason: "decode record", Err: err}
	}
	switch {
	case r.FromPeerID == nil || *r.FromPeerID == "":
		return core.Message{}, &core.MalformedMessageError{Reason: "missing fromAgentId"}
	case r.Content == nil:
		return core.Message{}, &core.MalformedMessageError{Reason: "missing content"}
	case r.Timestamp == nil:
		return core.Message{}, &core.MalformedMessageError{Reason: "missing timestamp"}
	}

	return core.Message{
		FromPeerID:     *r.FromPeerID,
		Content:        *r.Content,
		ConversationID: r.ConversationID,
		Timestamp:      *r.Timestamp,
	}, nil
}

// SalvageTimestamp reads the numeric "timestamp" field of a record that
// failed to decode, so the poller can still move past it.
func SalvageTimestamp(raw json.RawMessage) (float64, bool) {
	ts := gjson.GetBytes(raw, "timestamp")
	if ts.Type != gjson.Number {
		return 0, false
	}
	return ts.Float(), true
}
