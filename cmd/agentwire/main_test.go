package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentwire/config"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/logging"
	"github.com/hupe1980/agentwire/model"
	"github.com/hupe1980/agentwire/model/anthropic"
	"github.com/hupe1980/agentwire/model/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildModel(t *testing.T) {
	m, err := buildModel(config.ResponderConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Model{}, m)
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)

	m, err = buildModel(config.ResponderConfig{Provider: config.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Model{}, m)

	m, err = buildModel(config.ResponderConfig{Provider: config.ProviderEcho})
	require.NoError(t, err)
	assert.Equal(t, model.EchoModel{}, m)

	_, err = buildModel(config.ResponderConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestBuildModel_ZeroTemperatureReachesProvider(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "ok"},
			}},
		})
	}))
	defer srv.Close()

	zero := 0.0
	m, err := buildModel(config.ResponderConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "k",
		BaseURL:     srv.URL + "/",
		Temperature: &zero,
	})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), model.Request{Turns: []core.Turn{core.UserTurn("hi")}})
	require.NoError(t, err)
	temp := gjson.GetBytes(body, "temperature")
	require.True(t, temp.Exists())
	assert.Equal(t, 0.0, temp.Float())
}

func TestBuildResponder_Disabled(t *testing.T) {
	r, err := buildResponder(&config.Config{}, logging.NoOpLogger{})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestBuildResponder_Echo(t *testing.T) {
	cfg := &config.Config{Responder: config.ResponderConfig{Enabled: true, Provider: config.ProviderEcho, HistoryLimit: 4}}
	r, err := buildResponder(cfg, logging.NoOpLogger{})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.NotNil(t, r.Store())
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node:\n  url: ws://localhost:8765/ws\n"), 0o600))

	cfg, err := loadConfig(&CLI{Config: path, LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelDebug, cfg.LogLevel())

	_, err = loadConfig(&CLI{Config: path, LogLevel: "shouty"})
	assert.Error(t, err)
}
