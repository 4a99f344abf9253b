package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildMessages_AlternatesRoles(t *testing.T) {
	msgs := buildMessages([]core.Turn{
		core.AssistantTurn("orphan"),
		core.UserTurn("a"),
		core.UserTurn("b"),
		core.AssistantTurn("c"),
		core.UserTurn("d"),
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Empty(t, buildMessages([]core.Turn{core.AssistantTurn("only")}))
}

func TestGenerate(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-sonnet-20241022",
			"content":     []map[string]any{{"type": "text", "text": "Sentiment is neutral."}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.MaxRetries = 0
	})
	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "persona",
		Turns:        []core.Turn{core.UserTurn("mood?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sentiment is neutral.", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "persona", gjson.GetBytes(body, "system.0.text").String())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "mood?", gjson.GetBytes(body, "messages.0.content.0.text").String())

	_, err = m.Generate(context.Background(), model.Request{})
	assert.ErrorIs(t, err, model.ErrNoTurns)
	assert.Equal(t, "anthropic", m.Info().Provider)
}
