package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: slog.LevelInfo})

	log.Debug("hidden")
	log.Info("sync pass finished", "pushed", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"sync pass finished\"")
	assert.Contains(t, out, "pushed=3")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{JSON: true, Level: slog.LevelDebug})

	log.Debug("cache miss", "key", "cache:routes:r1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "cache miss", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "cache:routes:r1", record["key"])
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	log := Discard()
	assert.Same(t, log, OrDiscard(log))
	assert.False(t, log.Enabled(t.Context(), slog.LevelError))
}
