package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpapi "telemetry-service/app/src/api/http"
	"telemetry-service/app/src/core"
	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

// memoryRepo is an in-memory SampleRepository used to exercise the full
// service stack without Postgres.
type memoryRepo struct {
	mu      sync.Mutex
	samples []domain.BatchSample
}

func (m *memoryRepo) Add(_ context.Context, sample domain.BatchSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memoryRepo) SamplesByBatchID(_ context.Context, batchID string) ([]domain.BatchSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BatchSample
	for _, sample := range m.samples {
		if sample.BatchID == batchID {
			out = append(out, sample)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *memoryRepo) SamplesInRange(_ context.Context, from, to time.Time) ([]domain.BatchSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BatchSample
	for _, sample := range m.samples {
		if !sample.Timestamp.Before(from) && !sample.Timestamp.After(to) {
			out = append(out, sample)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

func newStackServer(t *testing.T, repo domain.SampleRepository, failureRate float64, defaultFailFast bool) *httpapi.Server {
	t.Helper()

	logger := infra.NewLogger(io.Discard, "test-http")
	fetcher := core.NewSimFetcher(core.FetcherConfig{
		Latency:     5 * time.Millisecond,
		ValueBound:  100,
		FailureRate: failureRate,
	}, logger)
	fanout := core.NewFanout(fetcher, core.FanoutConfig{MaxInFlight: 4}, logger)
	service := core.NewService(fanout, repo, logger)

	return httpapi.NewServer(service, defaultFailFast, logger)
}

func TestHTTPFetchStoresOrderedBatch(t *testing.T) {
	t.Parallel()

	repo := &memoryRepo{}
	server := newStackServer(t, repo, 0, true)

	body := `{"source_ids":["1","2","3","4","5"]}`
	req := httptest.NewRequest(http.MethodPost, "/fetch", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		BatchID string `json:"batch_id"`
		Samples []struct {
			SourceID string  `json:"source_id"`
			Value    float64 `json:"value"`
		} `json:"samples"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.BatchID == "" {
		t.Fatal("batch_id should not be empty")
	}
	if len(response.Samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(response.Samples))
	}
	for i, sample := range response.Samples {
		expected := string(rune('1' + i))
		if sample.SourceID != expected {
			t.Fatalf("sample %d out of order: got source %s, want %s", i, sample.SourceID, expected)
		}
		if sample.Value < 0 || sample.Value >= 100 {
			t.Fatalf("sample %d value %f outside [0,100)", i, sample.Value)
		}
	}

	// The repository is written asynchronously from the fetch path.
	deadline := time.Now().Add(time.Second)
	for repo.count() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 5 stored samples, got %d", repo.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The stored batch must be retrievable through the read endpoint.
	req = httptest.NewRequest(http.MethodGet, "/reports?batch_id="+response.BatchID, nil)
	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200 from /reports, got %d", recorder.Code)
	}
}

func TestHTTPFetchAllOrNothing(t *testing.T) {
	t.Parallel()

	repo := &memoryRepo{}
	server := newStackServer(t, repo, 1, true)

	req := httptest.NewRequest(http.MethodPost, "/fetch", strings.NewReader(`{"source_ids":["1","2","3"]}`))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", recorder.Code)
	}
	if repo.count() != 0 {
		t.Fatalf("failed batch must not store samples, got %d", repo.count())
	}
}

func TestHTTPFetchOutcomeMode(t *testing.T) {
	t.Parallel()

	server := newStackServer(t, &memoryRepo{}, 1, false)

	req := httptest.NewRequest(http.MethodPost, "/fetch", strings.NewReader(`{"source_ids":["1","2"]}`))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Outcomes []struct {
			SourceID string `json:"source_id"`
			Error    string `json:"error"`
		} `json:"outcomes"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(response.Outcomes))
	}
	for i, outcome := range response.Outcomes {
		if outcome.Error == "" {
			t.Fatalf("outcome %d should carry an error with failure rate 1", i)
		}
	}
}
