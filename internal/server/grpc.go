package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the engine.
const ServiceName = "schoolline.ussd"

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the health service and reflection. Both the overall ("") and
// ServiceName statuses start as SERVING.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}

// WatchHealth pings checks every interval and flips ServiceName between
// SERVING and NOT_SERVING. It returns when ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, checks map[string]Pinger, interval time.Duration, logger *slog.Logger) {
	if len(checks) == 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		for name, p := range checks {
			if err := p.Ping(pctx); err != nil {
				logger.Warn("health check failed", "check", name, "err", err)
				next = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		cancel()
		if next != last {
			hs.SetServingStatus(ServiceName, next)
			last = next
		}
	}
}
