package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestFromCarriesTraceAndSession(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info")

	ctx, traceID := WithNewTraceID(context.Background())
	ctx = WithSessionID(ctx, "sess-1")
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))

	From(ctx).Info("sync finished")

	out := buf.String()
	assert.Contains(t, out, "sync finished")
	assert.Contains(t, out, traceID)
	assert.Contains(t, out, "sess-1")
}
