package core

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"telemetry-service/app/src/domain"
	sharederrors "telemetry-service/app/src/shared/errors"
)

type FetcherConfig struct {
	// Latency is the artificial delay applied to every retrieval.
	Latency time.Duration
	// ValueBound is the exclusive upper bound of generated values.
	ValueBound float64
	// FailureRate is the probability in [0, 1] that a retrieval fails.
	FailureRate float64
	RandSource  rand.Source
	// FailFunc, when set, decides failure per source and takes precedence
	// over FailureRate.
	FailFunc func(sourceID string) error
}

// SimFetcher simulates a remote telemetry source: each retrieval waits the
// configured latency and produces a value uniform in [0, ValueBound).
type SimFetcher struct {
	cfg    FetcherConfig
	logger Logger

	// rnd is not safe for concurrent use; retrievals run fanned out.
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimFetcher(cfg FetcherConfig, logger Logger) *SimFetcher {
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	if cfg.ValueBound <= 0 {
		cfg.ValueBound = 100
	}
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0
	}
	if cfg.FailureRate > 1 {
		cfg.FailureRate = 1
	}

	source := cfg.RandSource
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}
	cfg.RandSource = source

	return &SimFetcher{
		cfg:    cfg,
		logger: logger,
		rnd:    rand.New(source),
	}
}

func (f *SimFetcher) FetchSample(ctx context.Context, sourceID string) (domain.Sample, error) {
	f.log(ctx, "fetcher: retrieving source=%s", sourceID)

	if err := f.wait(ctx); err != nil {
		return domain.Sample{}, err
	}

	if err := f.failureFor(sourceID); err != nil {
		f.log(ctx, "fetcher: source=%s failed: %v", sourceID, err)
		return domain.Sample{}, err
	}

	sample := domain.Sample{
		SourceID:  sourceID,
		Value:     f.randomValue(),
		Timestamp: time.Now().UTC(),
	}
	f.log(ctx, "fetcher: source=%s value=%.2f", sourceID, sample.Value)
	return sample, nil
}

func (f *SimFetcher) wait(ctx context.Context) error {
	if f.cfg.Latency == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(f.cfg.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *SimFetcher) failureFor(sourceID string) error {
	if f.cfg.FailFunc != nil {
		return f.cfg.FailFunc(sourceID)
	}
	if f.cfg.FailureRate == 0 {
		return nil
	}

	f.mu.Lock()
	roll := f.rnd.Float64()
	f.mu.Unlock()

	if roll < f.cfg.FailureRate {
		return sharederrors.ErrFetchFailed
	}
	return nil
}

func (f *SimFetcher) randomValue() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64() * f.cfg.ValueBound
}

func (f *SimFetcher) log(ctx context.Context, format string, v ...any) {
	if f.logger != nil {
		f.logger.Printf(ctx, format, v...)
	}
}

var _ domain.SampleFetcher = (*SimFetcher)(nil)
