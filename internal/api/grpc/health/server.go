package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-agent/internal/logger"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "alarm-agent"

// ErrNoListenAddress indicates a missing listen address.
var ErrNoListenAddress = errors.New("no health listen address configured")

// Server serves gRPC health checks.
type Server struct {
	// grpc is the underlying gRPC server.
	grpc *grpc.Server
	// health tracks the serving status.
	health *grpchealth.Server
}

// NewServer creates a server that reports NOT_SERVING until SetServing(true).
func NewServer() *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpc:   gs,
		health: hs,
	}
}

// SetServing updates the reported status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// ListenAndServe listens on address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	if address == "" {
		return ErrNoListenAddress
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.Serve(ctx, lis)
}

// Serve serves on lis and blocks until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	logger.InfoKV(ctx, "Health server listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes so that Serve
	// returns only once the server has fully stopped.
	done := make(chan struct{})
	stop := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-ctx.Done():
		case <-stop:
		}

		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	err := s.grpc.Serve(lis)
	close(stop)
	<-done

	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	logger.Info(ctx, "Health server stopped")

	return nil
}
