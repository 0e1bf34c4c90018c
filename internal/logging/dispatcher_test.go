package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/squadfront/server/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	dl.Info("handlers registered", "count", 6)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "handlers registered", entry["msg"])
	assert.Equal(t, float64(6), entry["count"])
}

func TestDispatcherLogger_ErrorIsWarn(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	dl.Error("event failed", "command", "place_unit", "error", "cell occupied")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "place_unit", entry["command"])
}

func TestDispatcherLogger_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dl.Debug("hidden")

	assert.Zero(t, buf.Len())
}

func TestDispatcherLogger_NilFallsBackToDefault(t *testing.T) {
	dl := NewDispatcherLogger(nil)
	assert.NotPanics(t, func() { dl.Info("fine") })
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ dispatcher.Logger = NewDispatcherLogger(slog.Default())
}
