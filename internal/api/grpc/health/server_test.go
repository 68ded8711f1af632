package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TestServer_StatusLifecycle reports NOT_SERVING, then SERVING, and stops with the context.
func TestServer_StatusLifecycle(t *testing.T) {
	t.Parallel()

	lc := net.ListenConfig{}
	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer()
	served := make(chan error, 1)

	go func() { served <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
		defer callCancel()

		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)

		return resp.GetStatus()
	}

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ServiceName))

	s.SetServing(true)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))

	cancel()

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// TestListenAndServe_RequiresAddress rejects an empty address.
func TestListenAndServe_RequiresAddress(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewServer().ListenAndServe(context.Background(), ""), ErrNoListenAddress)
}
