package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
	"telemetry-service/app/src/shared/constants"
)

// Config contains the configuration required to connect to a Postgres database.
type Config struct {
	DSN    string
	Runner CommandRunner
	Logger *infra.Logger
	// BatchSize determines how many samples are flushed together.
	BatchSize int
	// BatchTimeout specifies how long to wait before flushing a partial batch.
	BatchTimeout time.Duration
	// BufferSize controls the capacity of the inbound sample queue.
	BufferSize int
}

// CommandRunner executes SQL commands against Postgres.
type CommandRunner interface {
	Exec(ctx context.Context, dsn, password, sql string, args ...any) (string, error)
	Close() error
}

// Repository implements the sample repository contracts backed by Postgres.
// Writes are buffered and flushed asynchronously in batches.
type Repository struct {
	dsn      string
	password string

	runner CommandRunner
	logger *infra.Logger

	batchSize    int
	batchTimeout time.Duration
	buffer       chan domain.BatchSample
	stopCh       chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
}

const insertSampleSQL = `
INSERT INTO public.telemetry_samples (batch_id, seq, source_id, value, ts)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (batch_id, seq) DO NOTHING
`

// New creates a repository backed by Postgres using a SQL command runner.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres repository: DSN is required")
	}

	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres repository: parse dsn: %w", err)
	}

	password, _ := parsed.User.Password()

	runner := cfg.Runner
	if runner == nil {
		runner = NewSQLRunner()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = batchSize
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout < 0 {
		batchTimeout = 0
	}

	repo := &Repository{
		dsn:          cfg.DSN,
		password:     password,
		runner:       runner,
		logger:       cfg.Logger,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		buffer:       make(chan domain.BatchSample, bufferSize),
		stopCh:       make(chan struct{}),
	}

	repo.wg.Add(1)
	go repo.run()

	return repo, nil
}

// Close flushes buffered samples and releases resources held by the repository.
func (r *Repository) Close() error {
	r.mu.Lock()
	alreadyClosed := r.closed
	if !r.closed {
		r.closed = true
		close(r.stopCh)
	}
	r.mu.Unlock()

	if !alreadyClosed {
		r.wg.Wait()
	}

	var err error
	r.closeOnce.Do(func() {
		err = r.runner.Close()
	})
	return err
}

// Add queues a sample for asynchronous persistence.
func (r *Repository) Add(ctx context.Context, sample domain.BatchSample) error {
	if err := validateSample(sample); err != nil {
		return err
	}

	r.mu.RLock()
	closed := r.closed
	stopCh := r.stopCh
	buffer := r.buffer
	r.mu.RUnlock()

	if closed {
		return errors.New("postgres repository: repository closed")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCh:
		return errors.New("postgres repository: repository closed")
	case buffer <- sample:
		return nil
	}
}

func (r *Repository) run() {
	defer r.wg.Done()

	batch := make([]domain.BatchSample, 0, r.batchSize)
	var batchStart time.Time
	var timer *time.Timer

	activateTimer := func() {
		if r.batchTimeout <= 0 {
			return
		}
		if timer == nil {
			timer = time.NewTimer(r.batchTimeout)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.batchTimeout)
	}

	deactivateTimer := func() {
		if timer == nil {
			return
		}
		t := timer
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		timer = nil
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		wait := time.Since(batchStart)
		r.processBatch(batch, wait)
		batch = batch[:0]
		deactivateTimer()
	}

	appendToBatch := func(sample domain.BatchSample) {
		batch = append(batch, sample)
		if len(batch) == 1 {
			batchStart = time.Now()
			activateTimer()
		}
		if len(batch) >= r.batchSize {
			flush()
		}
	}

	for {
		var timeout <-chan time.Time
		if timer != nil {
			timeout = timer.C
		}

		select {
		case <-r.stopCh:
			for {
				select {
				case sample := <-r.buffer:
					appendToBatch(sample)
				default:
					flush()
					return
				}
			}
		case sample := <-r.buffer:
			appendToBatch(sample)
		case <-timeout:
			flush()
		}
	}
}

func (r *Repository) processBatch(batch []domain.BatchSample, wait time.Duration) {
	if len(batch) == 0 {
		return
	}

	ctx := context.Background()
	for _, sample := range batch {
		if err := r.writeSample(ctx, sample); err != nil {
			if r.logger != nil {
				r.logger.Printf(ctx, "postgres repository: batch write failed batch=%s seq=%d: %v", sample.BatchID, sample.Seq, err)
			}
		}
	}

	infra.ObserveDBBatchSize(len(batch))
	infra.ObserveDBBatchWait(wait)
}

func (r *Repository) writeSample(ctx context.Context, sample domain.BatchSample) error {
	timestamp := sample.Timestamp.UTC()

	start := time.Now()
	tag, err := r.runner.Exec(ctx, r.dsn, r.password, insertSampleSQL,
		sample.BatchID, sample.Seq, sample.SourceID, sample.Value, timestamp)
	infra.ObserveDBWrite(time.Since(start))
	if err != nil {
		infra.IncErrors()
		infra.IncDBWriteErrors()
		if r.logger != nil {
			r.logger.Printf(ctx, "postgres repository: insert failed batch=%s seq=%d source=%s value=%v ts=%s: %v",
				sample.BatchID, sample.Seq, sample.SourceID, sample.Value, timestamp.Format(time.RFC3339Nano), err)
		}
		return fmt.Errorf("postgres repository: insert sample: %w", err)
	}

	affected, err := parseRowsAffected(tag)
	if err != nil {
		infra.IncErrors()
		infra.IncDBWriteErrors()
		if r.logger != nil {
			r.logger.Printf(ctx, "postgres repository: parse insert result failed batch=%s seq=%d tag=%q: %v", sample.BatchID, sample.Seq, tag, err)
		}
		return fmt.Errorf("postgres repository: parse insert result: %w", err)
	}

	if affected == 0 {
		// Duplicate (batch_id, seq): the sample is already stored.
		if r.logger != nil {
			r.logger.Printf(ctx, "postgres repository: skipped duplicate batch=%s seq=%d", sample.BatchID, sample.Seq)
		}
		return nil
	}

	infra.IncDBWrites()
	return nil
}

func validateSample(sample domain.BatchSample) error {
	if sample.BatchID == "" {
		infra.IncErrors()
		return errors.New("postgres repository: batch id is required")
	}
	if _, err := constants.ParseUUID(sample.BatchID); err != nil {
		infra.IncErrors()
		return fmt.Errorf("postgres repository: invalid batch id: %w", err)
	}
	if sample.SourceID == "" {
		infra.IncErrors()
		return errors.New("postgres repository: source id is required")
	}
	if sample.Seq < 0 {
		infra.IncErrors()
		return errors.New("postgres repository: negative sequence number")
	}
	return nil
}

func parseRowsAffected(tag string) (int64, error) {
	fields := strings.Fields(strings.TrimSpace(tag))
	if len(fields) == 0 {
		return 0, nil
	}

	switch strings.ToUpper(fields[0]) {
	case "UPDATE", "DELETE":
		if len(fields) < 2 {
			return 0, fmt.Errorf("unexpected command tag %q", tag)
		}
		count, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rows affected: %w", err)
		}
		return count, nil
	case "INSERT":
		if len(fields) < 3 {
			return 0, fmt.Errorf("unexpected command tag %q", tag)
		}
		count, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse rows affected: %w", err)
		}
		return count, nil
	default:
		return 0, fmt.Errorf("unsupported command tag %q", tag)
	}
}

// SamplesByBatchID returns the stored samples of one batch in request order.
func (r *Repository) SamplesByBatchID(ctx context.Context, batchID string) ([]domain.BatchSample, error) {
	if _, err := constants.ParseUUID(batchID); err != nil {
		return nil, fmt.Errorf("postgres repository: invalid batch id: %w", err)
	}

	statement := fmt.Sprintf(
		"SELECT batch_id::text, seq, source_id, value, ts AT TIME ZONE 'UTC' FROM public.telemetry_samples WHERE batch_id = '%s'::uuid ORDER BY seq ASC",
		batchID,
	)

	output, err := r.runner.Exec(ctx, r.dsn, r.password, statement)
	if err != nil {
		return nil, fmt.Errorf("postgres repository: samples by batch id: %w", err)
	}

	samples, err := parseSampleList(output)
	if err != nil {
		return nil, fmt.Errorf("postgres repository: samples by batch id parse: %w", err)
	}
	if len(samples) == 0 {
		return nil, domain.ErrNotFound
	}

	return samples, nil
}

// SamplesInRange returns all samples recorded within the provided time range ordered by timestamp.
func (r *Repository) SamplesInRange(ctx context.Context, from, to time.Time) ([]domain.BatchSample, error) {
	statement := fmt.Sprintf(
		"SELECT batch_id::text, seq, source_id, value, ts AT TIME ZONE 'UTC' FROM public.telemetry_samples WHERE ts BETWEEN '%s'::timestamptz AND '%s'::timestamptz ORDER BY ts ASC",
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
	)

	output, err := r.runner.Exec(ctx, r.dsn, r.password, statement)
	if err != nil {
		return nil, fmt.Errorf("postgres repository: samples in range: %w", err)
	}

	samples, err := parseSampleList(output)
	if err != nil {
		return nil, fmt.Errorf("postgres repository: samples in range parse: %w", err)
	}
	if len(samples) == 0 {
		return nil, domain.ErrNotFound
	}

	return samples, nil
}

func parseSampleList(output string) ([]domain.BatchSample, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(trimmed))
	reader.TrimLeadingSpace = true

	var results []domain.BatchSample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		if len(record) < 5 {
			return nil, fmt.Errorf("unexpected column count: %d", len(record))
		}

		seq, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("parse seq: %w", err)
		}

		value, err := parseFloat(record[3])
		if err != nil {
			return nil, err
		}

		timestamp, err := time.Parse(time.RFC3339Nano, record[4])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}

		results = append(results, domain.BatchSample{
			BatchID:   record[0],
			Seq:       seq,
			SourceID:  record[2],
			Value:     value,
			Timestamp: timestamp,
		})
	}

	return results, nil
}

func parseFloat(input string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return value, nil
}

var _ domain.SampleRepository = (*Repository)(nil)
