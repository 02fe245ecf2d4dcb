//go:build wireinject

package cli

import (
	"context"
	"io"

	"github.com/google/wire"
)

func initApplication(ctx context.Context, out io.Writer) (*application, func(), error) {
	wire.Build(
		provideConfig,
		provideServiceName,
		provideLogger,
		provideFetcherConfig,
		provideFetcher,
		provideFanoutConfig,
		provideFanout,
		provideService,
		provideRepository,
		newApplication,
		assembleApplication,
	)
	return nil, nil, nil
}
