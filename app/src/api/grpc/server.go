package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"telemetry-service/app/src/infra"
)

// ServiceName identifies the telemetry service in health check responses.
const ServiceName = "telemetry.v1.TelemetryService"

// NewServer constructs a gRPC server exposing health checks for the service.
// The health status is flipped to NOT_SERVING during shutdown via the returned
// health server.
func NewServer(logger *infra.Logger) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{
		loggingInterceptor(logger),
		infra.GRPCUnaryInterceptor(),
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

func loggingInterceptor(logger *infra.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		if err != nil {
			if logger != nil {
				logger.Printf(ctx, "gRPC %s failed in %s: %v", info.FullMethod, duration, err)
			}
		} else {
			if logger != nil {
				logger.Printf(ctx, "gRPC %s completed in %s", info.FullMethod, duration)
			}
		}
		return resp, err
	}
}
