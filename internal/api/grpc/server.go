package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	otelgrpc "go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// FeedServiceName is the health service name load balancers probe.
const FeedServiceName = "swipework.Feed"

// Checker reports whether a backing dependency is reachable.
type Checker func(ctx context.Context) error

// Server exposes the standard gRPC health service, kept in step with the
// backing store by a periodic probe.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	check  Checker
	logger *slog.Logger
}

func NewServer(check Checker, logger *slog.Logger) *Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(FeedServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		srv:    srv,
		health: hs,
		check:  check,
		logger: logger.With("component", "grpc-server"),
	}
}

// Probe runs the checker once and updates the serving status.
func (s *Server) Probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check(ctx); err != nil {
			s.logger.Warn("health probe failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(FeedServiceName, status)
	s.health.SetServingStatus("", status)
}

// Serve listens on addr and probes every interval until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		s.Probe(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Probe(ctx)
			}
		}
	}()

	s.logger.Info("gRPC server listening", "address", addr)
	return s.srv.Serve(lis)
}

// Stop marks the service as not serving and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
