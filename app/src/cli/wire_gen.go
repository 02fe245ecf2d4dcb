//go:build !wireinject

package cli

import (
	"context"
	"io"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

func initApplication(ctx context.Context, out io.Writer) (*application, func(), error) {
	cfg, logger, err := setupBase(out)
	if err != nil {
		return nil, nil, err
	}

	repo, cleanup, err := setupRepository(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	svc := setupService(cfg, repo, logger)

	app := newApplication(cfg, logger, svc)
	return assembleApplication(app, cleanup)
}

func setupBase(out io.Writer) (infra.Config, *infra.Logger, error) {
	cfg, err := provideConfig()
	if err != nil {
		return infra.Config{}, nil, err
	}
	svcName := provideServiceName()
	log := provideLogger(out, svcName)
	return cfg, log, nil
}

func setupRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.SampleRepository, func(), error) {
	return provideRepository(ctx, cfg, logger)
}

func setupService(cfg infra.Config, repo domain.SampleRepository, logger *infra.Logger) domain.FetchService {
	fetcherCfg := provideFetcherConfig(cfg)
	fetcher := provideFetcher(fetcherCfg, logger)
	fanoutCfg := provideFanoutConfig(cfg)
	fanout := provideFanout(fetcher, fanoutCfg, logger)
	return provideService(fanout, repo, logger)
}
