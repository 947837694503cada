package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LogConfig{Level: "INFO", Format: "json"}))

	logger.Debug("hidden")
	logger.Info("schedule executed", "schedule_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "schedule executed", entry["msg"])
	assert.Equal(t, "abc", entry["schedule_id"])
}

func TestNewHandler_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LogConfig{Level: "INFO", Format: "console"}))

	logger.Info("sweep completed", "due", 3)

	out := buf.String()
	assert.Contains(t, out, "sweep completed")
	assert.Contains(t, out, "due=")
	assert.NotContains(t, out, `"msg"`)
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}
