package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e), "line: %s", line)
		entries = append(entries, e)
	}
	return entries
}

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test-service")

	ctx := context.Background()
	logger.Printf(ctx, "hello %s", "world")
	logger.Println(ctx, "second", "line")
	logger.Errorf(ctx, "boom: %d", 42)

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 3)

	assert.Equal(t, "hello world", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "test-service", entries[0]["service"])
	assert.NotEmpty(t, entries[0]["timestamp"])

	assert.Equal(t, "second line", entries[1]["message"])

	assert.Equal(t, "boom: 42", entries[2]["message"])
	assert.Equal(t, "error", entries[2]["level"])
}

func TestLoggerRequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test-service")

	ctx := WithRequestID(context.Background(), "req-123")
	logger.Printf(ctx, "with id")
	logger.Printf(context.Background(), "without id")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "req-123", entries[0]["request_id"])
	_, present := entries[1]["request_id"]
	assert.False(t, present, "request_id must be omitted when empty")
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(nil))

	ctx := WithRequestID(context.Background(), "  abc  ")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	ctx := context.Background()

	// Must not panic.
	logger.Printf(ctx, "ignored")
	logger.Println(ctx, "ignored")
	logger.Errorf(ctx, "ignored")
}

func TestNewLoggerNilWriter(t *testing.T) {
	logger := NewLogger(nil, "svc")
	require.NotNil(t, logger)

	// Writes go to io.Discard without panicking.
	logger.Printf(context.Background(), "discarded")
}
