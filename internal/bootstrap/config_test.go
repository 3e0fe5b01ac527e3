package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("defaults to json at info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "", "")

		assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
		logger.Info("hello", "k", "v")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "v", line["k"])
	})

	t.Run("text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, " debug ", "TEXT")

		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
		logger.Debug("hello")
		assert.Contains(t, buf.String(), "level=DEBUG msg=hello")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger := newLogger(&bytes.Buffer{}, "chatty", "json")
		assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})
}
