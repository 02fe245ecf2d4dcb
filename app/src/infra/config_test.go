package infra

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "GRPC_PORT", "METRICS_PORT", "CONFIG_FILE",
		"DB_BATCH_SIZE", "DB_BATCH_TIMEOUT_MS", "DB_BATCH_BUFFER",
		"FETCH_LATENCY_MS", "FETCH_VALUE_BOUND", "FETCH_FAILURE_RATE",
		"MAX_IN_FLIGHT", "FAIL_FAST"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, "2112", cfg.MetricsPort)
	assert.Equal(t, 32, cfg.DatabaseBatchSize)
	assert.Equal(t, 250, cfg.DatabaseBatchTimeoutMS)
	assert.Equal(t, 128, cfg.DatabaseBatchBufferSize)
	assert.Equal(t, 1000, cfg.FetchLatencyMillis)
	assert.Equal(t, 100.0, cfg.FetchValueBound)
	assert.Equal(t, 0.0, cfg.FetchFailureRate)
	assert.Equal(t, 0, cfg.MaxInFlight)
	assert.True(t, cfg.FailFast)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("FETCH_LATENCY_MS", "50")
	t.Setenv("FETCH_VALUE_BOUND", "10.5")
	t.Setenv("FETCH_FAILURE_RATE", "0.25")
	t.Setenv("MAX_IN_FLIGHT", "8")
	t.Setenv("FAIL_FAST", "false")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 50, cfg.FetchLatencyMillis)
	assert.Equal(t, 10.5, cfg.FetchValueBound)
	assert.Equal(t, 0.25, cfg.FetchFailureRate)
	assert.Equal(t, 8, cfg.MaxInFlight)
	assert.False(t, cfg.FailFast)
	assert.Equal(t, "db.internal", cfg.DatabaseHost)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FETCH_LATENCY_MS", "not-a-number")
	t.Setenv("FETCH_FAILURE_RATE", "lots")
	t.Setenv("FAIL_FAST", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.FetchLatencyMillis)
	assert.Equal(t, 0.0, cfg.FetchFailureRate)
	assert.True(t, cfg.FailFast)
}

func TestLoadConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := strings.Join([]string{
		"http_port: \"7070\"",
		"fetch_latency_ms: 5",
		"fail_fast: false",
		"max_in_flight: 3",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// The file overrides only the keys it names.
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, "6000", cfg.GRPCPort)
	assert.Equal(t, 5, cfg.FetchLatencyMillis)
	assert.Equal(t, 3, cfg.MaxInFlight)
	assert.False(t, cfg.FailFast)
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoadConfigFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	t.Setenv("CONFIG_FILE", path)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLogConfigRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test")

	cfg := Config{
		HTTPPort:         "8080",
		GRPCPort:         "50051",
		DatabaseDSN:      "postgres://user:secret@db/x",
		DatabasePassword: "secret",
	}

	LogConfig(context.Background(), logger, cfg)
	output := buf.String()

	assert.NotContains(t, output, "secret")
	assert.Contains(t, output, "DB_PASSWORD set (redacted)")
	assert.Contains(t, output, "DB_DSN set")
}
