package core

import (
	"context"
	"fmt"
	"time"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
	"telemetry-service/app/src/shared/constants"
)

// Service runs fan-out fetches, persists the resulting samples and serves
// read queries for the transport layers.
type Service struct {
	fanout *Fanout
	repo   domain.SampleRepository
	logger Logger
}

func NewService(fanout *Fanout, repo domain.SampleRepository, logger Logger) *Service {
	return &Service{fanout: fanout, repo: repo, logger: logger}
}

// FetchReport performs an all-or-nothing fan-out: on success the report
// holds one sample per requested identifier in request order; on any child
// failure no report is produced.
func (s *Service) FetchReport(ctx context.Context, sourceIDs []string) (domain.Report, error) {
	batchID := constants.GenerateUUID()
	requestedAt := time.Now().UTC()
	s.log(ctx, "service: batch=%s fan-out over %d sources", batchID, len(sourceIDs))

	samples, err := s.fanout.FetchAll(ctx, sourceIDs)
	if err != nil {
		return domain.Report{}, fmt.Errorf("batch %s: %w", batchID, err)
	}

	report := domain.Report{
		BatchID:     batchID,
		RequestedAt: requestedAt,
		CompletedAt: time.Now().UTC(),
		Samples:     samples,
	}

	s.storeSamples(ctx, batchID, samples)
	infra.ObserveBatchSize(len(samples))
	return report, nil
}

// FetchOutcomes performs a collect-mode fan-out: every requested identifier
// yields an outcome, successful ones are persisted.
func (s *Service) FetchOutcomes(ctx context.Context, sourceIDs []string) (domain.OutcomeReport, error) {
	batchID := constants.GenerateUUID()
	requestedAt := time.Now().UTC()
	s.log(ctx, "service: batch=%s collect fan-out over %d sources", batchID, len(sourceIDs))

	outcomes := s.fanout.FetchOutcomes(ctx, sourceIDs)

	report := domain.OutcomeReport{
		BatchID:     batchID,
		RequestedAt: requestedAt,
		CompletedAt: time.Now().UTC(),
		Outcomes:    outcomes,
	}

	stored := 0
	for i, outcome := range outcomes {
		if !outcome.OK() {
			continue
		}
		s.storeSample(ctx, batchID, i, outcome.Sample)
		stored++
	}
	infra.ObserveBatchSize(stored)
	return report, nil
}

// ReportByBatchID rebuilds a stored report. RequestedAt and CompletedAt are
// derived from the earliest and latest sample timestamps.
func (s *Service) ReportByBatchID(ctx context.Context, batchID string) (domain.Report, error) {
	if s.repo == nil {
		return domain.Report{}, domain.ErrNotFound
	}

	stored, err := s.repo.SamplesByBatchID(ctx, batchID)
	if err != nil {
		return domain.Report{}, err
	}
	if len(stored) == 0 {
		return domain.Report{}, domain.ErrNotFound
	}

	report := domain.Report{
		BatchID:     batchID,
		RequestedAt: stored[0].Timestamp,
		CompletedAt: stored[0].Timestamp,
		Samples:     make([]domain.Sample, len(stored)),
	}
	for i, sample := range stored {
		report.Samples[i] = domain.Sample{
			SourceID:  sample.SourceID,
			Value:     sample.Value,
			Timestamp: sample.Timestamp,
		}
		if sample.Timestamp.Before(report.RequestedAt) {
			report.RequestedAt = sample.Timestamp
		}
		if sample.Timestamp.After(report.CompletedAt) {
			report.CompletedAt = sample.Timestamp
		}
	}
	return report, nil
}

// SamplesInRange returns stored samples recorded within the time range.
func (s *Service) SamplesInRange(ctx context.Context, from, to time.Time) ([]domain.BatchSample, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.SamplesInRange(ctx, from, to)
}

func (s *Service) storeSamples(ctx context.Context, batchID string, samples []domain.Sample) {
	for i, sample := range samples {
		s.storeSample(ctx, batchID, i, sample)
	}
}

// Storage failures do not fail the fetch: the report was already produced,
// persistence is best-effort and surfaced via logs and metrics.
func (s *Service) storeSample(ctx context.Context, batchID string, seq int, sample domain.Sample) {
	if s.repo == nil {
		return
	}

	stored := domain.BatchSample{
		BatchID:   batchID,
		Seq:       seq,
		SourceID:  sample.SourceID,
		Value:     sample.Value,
		Timestamp: sample.Timestamp,
	}

	if err := s.repo.Add(ctx, stored); err != nil {
		s.log(ctx, "service: failed to store batch=%s seq=%d source=%s: %v", batchID, seq, sample.SourceID, err)
	}
}

func (s *Service) log(ctx context.Context, format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, v...)
	}
}

var _ domain.FetchService = (*Service)(nil)
