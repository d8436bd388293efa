package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		ctx := WithLogger(context.Background(), logger)
		assert.Same(t, logger, FromContext(ctx))
	})

	t.Run("falls back to the default logger", func(t *testing.T) {
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})
}

func TestFanout(t *testing.T) {
	var text, jsonBuf bytes.Buffer
	logger := NewLoggerWithWriters(&text, &jsonBuf, slog.LevelDebug)

	logger.Info("resource ingested", "job", "mem", "records", 2)

	assert.Contains(t, text.String(), "resource ingested")
	assert.Contains(t, text.String(), "job=mem")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &entry))
	assert.Equal(t, "resource ingested", entry["msg"])
	assert.Equal(t, "mem", entry["job"])
}
