package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo, "warning": LogLevelWarn, "error": LogLevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestStructuredLogger_KeyValueArgsAndScope(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("transport").WithAgent("a1").WithPeer("p1").WithContext("kind", "node").
		Info("message received", "bytes", 12)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "message received", lines[0]["msg"])
	assert.Equal(t, "transport", lines[0]["component"])
	assert.Equal(t, "a1", lines[0]["agent_id"])
	assert.Equal(t, "p1", lines[0]["peer_id"])
	assert.Equal(t, "node", lines[0]["kind"])
	assert.EqualValues(t, 12, lines[0]["bytes"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")
	assert.Len(t, decodeLines(t, buf), 2)
}

func TestStructuredLogger_WithDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	_ = l.WithContext("k", "v")
	l.Info("plain")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["k"]
	assert.False(t, ok)
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogStateChange("connecting", "connected", "ws://node")
	l.LogLLMCall("gpt-3.5-turbo", 42, 10*time.Millisecond, false, errors.New("boom"))
	l.ErrorWithStack(errors.New("panic"), "handler panicked")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "connected", lines[0]["to"])
	assert.Equal(t, "LLM call failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.NotEmpty(t, lines[2]["stack_trace"])
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("x")
	l.Info("x", "k", 1)
	l.Warn("x")
	l.Error("x")
}
