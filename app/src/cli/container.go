package cli

import (
	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

type application struct {
	Config  infra.Config
	Logger  *infra.Logger
	Service domain.FetchService
}

func newApplication(cfg infra.Config, logger *infra.Logger, service domain.FetchService) *application {
	return &application{
		Config:  cfg,
		Logger:  logger,
		Service: service,
	}
}

func assembleApplication(app *application, cleanup func()) (*application, func(), error) {
	if cleanup == nil {
		cleanup = func() {}
	}
	return app, cleanup, nil
}
