package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

type FanoutConfig struct {
	// MaxInFlight caps concurrent retrievals. Zero means unbounded.
	MaxInFlight int
}

// Fanout issues one retrieval per source identifier concurrently and
// aggregates the results in input order.
type Fanout struct {
	fetcher domain.SampleFetcher
	cfg     FanoutConfig
	logger  Logger
}

func NewFanout(fetcher domain.SampleFetcher, cfg FanoutConfig, logger Logger) *Fanout {
	if cfg.MaxInFlight < 0 {
		cfg.MaxInFlight = 0
	}
	return &Fanout{fetcher: fetcher, cfg: cfg, logger: logger}
}

// FetchAll retrieves one sample per identifier and returns them in input
// order, duplicates included. The call is all-or-nothing: the first child
// failure cancels the remaining retrievals and no partial result is
// returned.
func (f *Fanout) FetchAll(ctx context.Context, sourceIDs []string) ([]domain.Sample, error) {
	samples := make([]domain.Sample, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return samples, nil
	}

	f.log(ctx, "fanout: dispatching %d retrievals", len(sourceIDs))

	g, ctx := errgroup.WithContext(ctx)
	if f.cfg.MaxInFlight > 0 {
		g.SetLimit(f.cfg.MaxInFlight)
	}

	for i, id := range sourceIDs {
		i, id := i, id
		g.Go(func() error {
			sample, err := f.fetchOne(ctx, id)
			if err != nil {
				return err
			}
			samples[i] = sample
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.log(ctx, "fanout: aborted: %v", err)
		return nil, err
	}

	f.log(ctx, "fanout: aggregated %d samples", len(samples))
	return samples, nil
}

// FetchOutcomes retrieves one sample per identifier and returns a complete
// ordered sequence of per-item outcomes: failures do not abort the batch.
func (f *Fanout) FetchOutcomes(ctx context.Context, sourceIDs []string) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return outcomes
	}

	f.log(ctx, "fanout: dispatching %d retrievals (collect mode)", len(sourceIDs))

	var sem chan struct{}
	if f.cfg.MaxInFlight > 0 {
		sem = make(chan struct{}, f.cfg.MaxInFlight)
	}

	var wg sync.WaitGroup
	wg.Add(len(sourceIDs))

	for i, id := range sourceIDs {
		i, id := i, id
		go func() {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					outcomes[i] = domain.Outcome{SourceID: id, Err: ctx.Err()}
					return
				}
			}

			sample, err := f.fetchOne(ctx, id)
			if err != nil {
				outcomes[i] = domain.Outcome{SourceID: id, Err: err}
				return
			}
			outcomes[i] = domain.Outcome{SourceID: id, Sample: sample}
		}()
	}

	wg.Wait()
	f.log(ctx, "fanout: collected %d outcomes", len(outcomes))
	return outcomes
}

func (f *Fanout) fetchOne(ctx context.Context, sourceID string) (domain.Sample, error) {
	infra.FetchStarted()
	start := time.Now()
	defer func() { infra.FetchFinished(time.Since(start)) }()

	sample, err := f.fetcher.FetchSample(ctx, sourceID)
	if err != nil {
		infra.IncFetchErrors()
		return domain.Sample{}, fmt.Errorf("source %s: %w", sourceID, err)
	}
	return sample, nil
}

func (f *Fanout) log(ctx context.Context, format string, v ...any) {
	if f.logger != nil {
		f.logger.Printf(ctx, format, v...)
	}
}
