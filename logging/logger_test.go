package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
		" error ": LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLoggerWithWriter(&buf, LogLevelInfo, "json", false)

	l.Debug("hidden")
	l.Info("agent.run.start", "agent", "weather_agent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "agent.run.start", rec["msg"])
	assert.Equal(t, "weather_agent", rec["agent"])
}

func TestSlogLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLoggerWithWriter(&buf, LogLevelDebug, "text", false)

	l.Warn("tool.call.error", "tool", "get_weather")

	assert.Contains(t, buf.String(), "tool.call.error")
	assert.Contains(t, buf.String(), "tool=get_weather")
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter(&buf, LogLevelInfo, "json")

	l.Debug("hidden")
	l.Error("flow.model.error", "agent", "combo", "attempt", 2, "error", errors.New("boom"), "dangling")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "flow.model.error", rec["message"])
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "combo", rec["agent"])
	assert.EqualValues(t, 2, rec["attempt"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "dangling", rec["!BADKEY"])
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", "v")
		l.Warn("x")
		l.Error("x")
	})
}
