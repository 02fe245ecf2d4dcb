package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"telemetry-service/app/src/core"
	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
	"telemetry-service/app/src/shared/constants"
)

var fetchOpts struct {
	count       int
	failFast    bool
	maxInFlight int
	latencyMS   int
	valueBound  float64
	failureRate float64
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [source-id...]",
	Short: "Run a single fan-out fetch and print the report",
	Long: `fetch retrieves one sample per source identifier concurrently and
prints the resulting report as JSON. Source identifiers are taken from
the arguments, or generated sequentially when --count is used instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), args)
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchOpts.count, "count", 0, "fetch this many sequential source IDs instead of arguments")
	fetchCmd.Flags().BoolVar(&fetchOpts.failFast, "fail-fast", true, "abort the whole batch on the first failure")
	fetchCmd.Flags().IntVar(&fetchOpts.maxInFlight, "max-in-flight", 0, "limit concurrent fetches (0 = unbounded)")
	fetchCmd.Flags().IntVar(&fetchOpts.latencyMS, "latency", 1000, "simulated per-fetch latency in milliseconds")
	fetchCmd.Flags().Float64Var(&fetchOpts.valueBound, "bound", 100, "exclusive upper bound for sample values")
	fetchCmd.Flags().Float64Var(&fetchOpts.failureRate, "failure-rate", 0, "probability of a simulated fetch failure in [0,1]")
}

func runFetch(parent context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceIDs := args
	if len(sourceIDs) == 0 && fetchOpts.count > 0 {
		sourceIDs = make([]string, fetchOpts.count)
		for i := range sourceIDs {
			sourceIDs[i] = strconv.Itoa(i + 1)
		}
	}
	if len(sourceIDs) == 0 {
		return errors.New("provide source IDs as arguments or use --count")
	}

	logger := infra.NewLogger(os.Stderr, "telemetry-fetch")

	fetcher := core.NewSimFetcher(core.FetcherConfig{
		Latency:     time.Duration(fetchOpts.latencyMS) * time.Millisecond,
		ValueBound:  fetchOpts.valueBound,
		FailureRate: fetchOpts.failureRate,
	}, logger)

	fanout := core.NewFanout(fetcher, core.FanoutConfig{MaxInFlight: fetchOpts.maxInFlight}, logger)
	service := core.NewService(fanout, nil, logger)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if fetchOpts.failFast {
		report, err := service.FetchReport(ctx, sourceIDs)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		return encoder.Encode(toFetchOutput(report))
	}

	report, err := service.FetchOutcomes(ctx, sourceIDs)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return encoder.Encode(toOutcomeOutput(report))
}

type fetchSampleOutput struct {
	SourceID  string  `json:"source_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

type fetchReportOutput struct {
	BatchID     string              `json:"batch_id"`
	RequestedAt string              `json:"requested_at"`
	CompletedAt string              `json:"completed_at"`
	Samples     []fetchSampleOutput `json:"samples"`
}

type fetchOutcomeOutput struct {
	SourceID string             `json:"source_id"`
	Sample   *fetchSampleOutput `json:"sample,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type fetchOutcomesOutput struct {
	BatchID     string               `json:"batch_id"`
	RequestedAt string               `json:"requested_at"`
	CompletedAt string               `json:"completed_at"`
	Outcomes    []fetchOutcomeOutput `json:"outcomes"`
}

func toFetchOutput(report domain.Report) fetchReportOutput {
	samples := make([]fetchSampleOutput, len(report.Samples))
	for i, sample := range report.Samples {
		samples[i] = fetchSampleOutput{
			SourceID:  sample.SourceID,
			Value:     sample.Value,
			Timestamp: sample.Timestamp.UTC().Format(constants.TimeFormat),
		}
	}
	return fetchReportOutput{
		BatchID:     report.BatchID,
		RequestedAt: report.RequestedAt.UTC().Format(constants.TimeFormat),
		CompletedAt: report.CompletedAt.UTC().Format(constants.TimeFormat),
		Samples:     samples,
	}
}

func toOutcomeOutput(report domain.OutcomeReport) fetchOutcomesOutput {
	outcomes := make([]fetchOutcomeOutput, len(report.Outcomes))
	for i, outcome := range report.Outcomes {
		entry := fetchOutcomeOutput{SourceID: outcome.SourceID}
		if outcome.OK() {
			sample := fetchSampleOutput{
				SourceID:  outcome.Sample.SourceID,
				Value:     outcome.Sample.Value,
				Timestamp: outcome.Sample.Timestamp.UTC().Format(constants.TimeFormat),
			}
			entry.Sample = &sample
		} else {
			entry.Error = outcome.Err.Error()
		}
		outcomes[i] = entry
	}
	return fetchOutcomesOutput{
		BatchID:     report.BatchID,
		RequestedAt: report.RequestedAt.UTC().Format(constants.TimeFormat),
		CompletedAt: report.CompletedAt.UTC().Format(constants.TimeFormat),
		Outcomes:    outcomes,
	}
}
