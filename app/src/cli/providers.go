package cli

import (
	"context"
	"io"
	"time"

	"telemetry-service/app/src/core"
	"telemetry-service/app/src/database"
	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

func provideConfig() (infra.Config, error) {
	return infra.LoadConfig()
}

func provideServiceName() string {
	return "telemetry-service"
}

func provideLogger(out io.Writer, serviceName string) *infra.Logger {
	return infra.NewLogger(out, serviceName)
}

func provideFetcherConfig(cfg infra.Config) core.FetcherConfig {
	return core.FetcherConfig{
		Latency:     time.Duration(cfg.FetchLatencyMillis) * time.Millisecond,
		ValueBound:  cfg.FetchValueBound,
		FailureRate: cfg.FetchFailureRate,
	}
}

func provideFetcher(cfg core.FetcherConfig, logger *infra.Logger) domain.SampleFetcher {
	return core.NewSimFetcher(cfg, logger)
}

func provideFanoutConfig(cfg infra.Config) core.FanoutConfig {
	return core.FanoutConfig{MaxInFlight: cfg.MaxInFlight}
}

func provideFanout(fetcher domain.SampleFetcher, cfg core.FanoutConfig, logger *infra.Logger) *core.Fanout {
	return core.NewFanout(fetcher, cfg, logger)
}

func provideService(fanout *core.Fanout, repo domain.SampleRepository, logger *infra.Logger) domain.FetchService {
	return core.NewService(fanout, repo, logger)
}

func provideRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.SampleRepository, func(), error) {
	if !database.ShouldCheckDatabase(cfg) {
		if logger != nil {
			logger.Println(ctx, "running without persistence (no DSN or host configured)")
		}
		return nil, func() {}, nil
	}

	if err := database.WaitForDatabase(ctx, cfg, logger); err != nil {
		if logger != nil {
			logger.Printf(ctx, "database connectivity check failed: %v", err)
		}
	} else {
		if logger != nil {
			logger.Println(ctx, "database connectivity check succeeded")
		}
	}

	return database.SetupRepository(ctx, cfg, logger)
}
