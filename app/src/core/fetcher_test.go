package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	sharederrors "telemetry-service/app/src/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *stubLogger) Printf(_ context.Context, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, v...))
}

func (l *stubLogger) Println(_ context.Context, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintln(v...))
}

func (l *stubLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func TestNewSimFetcherAppliesDefaults(t *testing.T) {
	logger := &stubLogger{}
	fetcher := NewSimFetcher(FetcherConfig{Latency: -time.Second, FailureRate: 2}, logger)

	assert.Equal(t, time.Duration(0), fetcher.cfg.Latency)
	assert.Equal(t, float64(100), fetcher.cfg.ValueBound)
	assert.Equal(t, float64(1), fetcher.cfg.FailureRate)
	assert.NotNil(t, fetcher.cfg.RandSource)
	assert.NotNil(t, fetcher.rnd)
	assert.Equal(t, logger, fetcher.logger)
}

func TestSimFetcherValuesWithinBound(t *testing.T) {
	fetcher := NewSimFetcher(FetcherConfig{
		ValueBound: 100,
		RandSource: rand.NewSource(1),
	}, &stubLogger{})

	for i := 0; i < 200; i++ {
		sample, err := fetcher.FetchSample(context.Background(), "vehicle-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sample.Value, float64(0))
		assert.Less(t, sample.Value, float64(100))
		assert.Equal(t, "vehicle-1", sample.SourceID)
		assert.Equal(t, time.UTC, sample.Timestamp.Location())
	}
}

func TestSimFetcherAppliesLatency(t *testing.T) {
	fetcher := NewSimFetcher(FetcherConfig{Latency: 50 * time.Millisecond}, &stubLogger{})

	start := time.Now()
	_, err := fetcher.FetchSample(context.Background(), "slow")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestSimFetcherHonoursCancellation(t *testing.T) {
	fetcher := NewSimFetcher(FetcherConfig{Latency: time.Minute}, &stubLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := fetcher.FetchSample(ctx, "cancelled")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimFetcherFailureRate(t *testing.T) {
	fetcher := NewSimFetcher(FetcherConfig{FailureRate: 1}, &stubLogger{})

	_, err := fetcher.FetchSample(context.Background(), "doomed")
	assert.ErrorIs(t, err, sharederrors.ErrFetchFailed)
}

func TestSimFetcherFailFuncTakesPrecedence(t *testing.T) {
	expected := errors.New("boom")
	fetcher := NewSimFetcher(FetcherConfig{
		FailureRate: 1,
		FailFunc: func(sourceID string) error {
			if sourceID == "bad" {
				return expected
			}
			return nil
		},
	}, &stubLogger{})

	_, err := fetcher.FetchSample(context.Background(), "bad")
	assert.ErrorIs(t, err, expected)

	sample, err := fetcher.FetchSample(context.Background(), "good")
	assert.NoError(t, err)
	assert.Equal(t, "good", sample.SourceID)
}

func TestSimFetcherLogsRetrievals(t *testing.T) {
	logger := &stubLogger{}
	fetcher := NewSimFetcher(FetcherConfig{}, logger)

	_, err := fetcher.FetchSample(context.Background(), "logged")
	require.NoError(t, err)

	messages := logger.messages()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0], "logged")
}
