package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		l := newLogger(Config{Level: tt.level}, &bytes.Buffer{})
		assert.Equal(t, tt.want, l.GetLevel(), "level %q", tt.level)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Format: "json"}, &buf)
	l.Info().Str("component", "test").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "test", line["component"])
	assert.Contains(t, line, "time")
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Format: "console"}, &buf)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
