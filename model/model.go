package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentwire/core"
)

// ErrNoTurns is returned when a request carries no conversation turns.
var ErrNoTurns = errors.New("model: request has no turns")

// Request captures the normalized model input built by the responder.
type Request struct {
	Instructions string      `json:"instructions"` // System prompt
	Turns        []core.Turn `json:"turns"`        // Oldest first; the last turn is the inbound message
}

// LastUserText returns the content of the most recent user turn.
func (r Request) LastUserText() string {
	for i := len(r.Turns) - 1; i >= 0; i-- {
		if r.Turns[i].Role == core.RoleUser {
			return r.Turns[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a final completion.
type Response struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "echo", ...
}

// Model is the minimal interface required by the responder.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	calls     []Request
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Calls returns the requests received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Turns) == 0 {
		return nil, ErrNoTurns
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	input := req.LastUserText()
	full := m.responses[input]
	m.mu.Unlock()

	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}

	return &Response{Text: full, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// EchoModel replies with the inbound text. It lets an agent run end to end
// without a model provider.
type EchoModel struct {
	// Prefix is prepended to every reply.
	Prefix string
}

var _ Model = EchoModel{}

// Generate implements Model.
func (e EchoModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Turns) == 0 {
		return nil, ErrNoTurns
	}
	text := req.LastUserText()
	words := len(strings.Fields(text))

	return &Response{
		Text:         e.Prefix + text,
		FinishReason: "stop",
		Usage:        &TokenUsage{PromptTokens: words, CompletionTokens: words, TotalTokens: 2 * words},
	}, nil
}

// Info implements Model.
func (EchoModel) Info() Info { return Info{Name: "echo", Provider: "echo"} }
