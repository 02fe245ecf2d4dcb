package domain

import (
	"context"
	"time"
)

// SampleFetcher retrieves one sample for one source identifier.
type SampleFetcher interface {
	FetchSample(ctx context.Context, sourceID string) (Sample, error)
}

// SampleWriter persists samples produced by fan-out fetches.
type SampleWriter interface {
	Add(ctx context.Context, sample BatchSample) error
}

// SampleReader exposes queries used by the read side of the service.
type SampleReader interface {
	SamplesByBatchID(ctx context.Context, batchID string) ([]BatchSample, error)
	SamplesInRange(ctx context.Context, from, to time.Time) ([]BatchSample, error)
}

// SampleRepository aggregates the write and read capabilities required by the service.
type SampleRepository interface {
	SampleWriter
	SampleReader
}

// FetchService describes the behaviour exposed to transport layers.
type FetchService interface {
	FetchReport(ctx context.Context, sourceIDs []string) (Report, error)
	FetchOutcomes(ctx context.Context, sourceIDs []string) (OutcomeReport, error)
	ReportByBatchID(ctx context.Context, batchID string) (Report, error)
	SamplesInRange(ctx context.Context, from, to time.Time) ([]BatchSample, error)
}
