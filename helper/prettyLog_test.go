package helper

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrettyHandler(level slog.Level) (*PrettyHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: level,
		},
	}
	return NewPrettyHandler(&buf, opts), &buf
}

func TestNewPrettyHandler(t *testing.T) {
	t.Run("Valid call NewPrettyHandler with empty options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		require.NotNil(t, handler)
		assert.NotNil(t, handler.Handler)
		assert.NotNil(t, handler.l)
		assert.Empty(t, handler.attrs)
	})

	t.Run("Valid call NewPrettyHandler honours the level", func(t *testing.T) {
		handler, _ := newTestPrettyHandler(slog.LevelWarn)

		assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
	})
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	levels := []struct {
		level  slog.Level
		prefix string
	}{
		{slog.LevelDebug, "DEBUG:"},
		{slog.LevelInfo, "INFO:"},
		{slog.LevelWarn, "WARN:"},
		{slog.LevelError, "ERROR:"},
	}
	for _, tc := range levels {
		t.Run("Valid call Handle at "+tc.level.String(), func(t *testing.T) {
			handler, buf := newTestPrettyHandler(slog.LevelDebug)

			record := slog.NewRecord(time.Now(), tc.level, "chunk extracted", 0)
			record.AddAttrs(slog.String("chunk_id", "c-1"), slog.Int("entities", 3))

			require.NoError(t, handler.Handle(ctx, record))
			output := buf.String()
			assert.Contains(t, output, tc.prefix)
			assert.Contains(t, output, "chunk extracted")
			assert.Contains(t, output, `"chunk_id": "c-1"`)
			assert.Contains(t, output, `"entities": 3`)
		})
	}

	t.Run("Valid call Handle without attributes", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "reset complete", 0)

		require.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "reset complete")
		assert.Contains(t, buf.String(), "{}")
	})

	t.Run("Valid call Handle with nested attributes", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "document committed", 0)
		record.AddAttrs(slog.Any("metadata", map[string]any{"category": "reports"}))

		require.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), `"metadata"`)
		assert.Contains(t, buf.String(), `"category": "reports"`)
	})

	t.Run("Valid call Handle formats the timestamp", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)

		record := slog.NewRecord(time.Date(2024, 5, 1, 9, 8, 7, 6_000_000, time.UTC), slog.LevelInfo, "query done", 0)

		require.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "[09:08:07.006]")
	})
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid call WithAttrs prints the logger attributes", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)
		logger := slog.New(handler).With("store", "memory")

		logger.InfoContext(ctx, "vector index created", "dimension", 16)

		output := buf.String()
		assert.Contains(t, output, `"store": "memory"`)
		assert.Contains(t, output, `"dimension": 16`)
	})

	t.Run("Valid call WithAttrs merges nested With calls", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)
		logger := slog.New(handler).With("component", "ingestion").With("document", "d-1")

		logger.Info("document committed")

		output := buf.String()
		assert.Contains(t, output, `"component": "ingestion"`)
		assert.Contains(t, output, `"document": "d-1"`)
	})

	t.Run("Valid call WithAttrs does not change the parent handler", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)
		_ = handler.WithAttrs([]slog.Attr{slog.String("store", "neo4j")})

		slog.New(handler).Info("plain")

		assert.NotContains(t, buf.String(), "neo4j")
	})

	t.Run("Valid call WithAttrs lets record attributes override logger attributes", func(t *testing.T) {
		handler, buf := newTestPrettyHandler(slog.LevelInfo)
		logger := slog.New(handler).With("hops", 1)

		logger.Info("expanded", "hops", 2)

		assert.Contains(t, buf.String(), `"hops": 2`)
		assert.NotContains(t, buf.String(), `"hops": 1`)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Valid call NewLogger enables its level and above", func(t *testing.T) {
		logger := NewLogger(slog.LevelWarn)
		require.NotNil(t, logger)

		assert.IsType(t, &PrettyHandler{}, logger.Handler())
		assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
	})

	t.Run("Valid call NewLogger at debug", func(t *testing.T) {
		logger := NewLogger(slog.LevelDebug)

		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"warn+2", slog.LevelWarn + 2},
	}
	for _, tc := range tests {
		t.Run("Valid call ParseLogLevel with "+tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLogLevel(tc.input))
		})
	}

	t.Run("Invalid call ParseLogLevel with unknown level falls back to info", func(t *testing.T) {
		assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
	})

	t.Run("Invalid call ParseLogLevel with empty string falls back to info", func(t *testing.T) {
		assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
	})
}
