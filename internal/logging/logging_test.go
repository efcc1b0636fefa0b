package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(FormatJSON, "info", &buf)

	log.Debug("hidden")
	log.Info("started", "port", 8080)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, float64(8080), rec["port"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(FormatPretty, "debug", &buf)

	log.Debug("listing models", "provider", "groq")

	out := buf.String()
	assert.Contains(t, out, "listing models")
	assert.Contains(t, out, "provider=groq")
	assert.NotContains(t, out, "\033[")
}

func TestNew_AutoFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	New(FormatAuto, "info", &buf).Info("hello")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
