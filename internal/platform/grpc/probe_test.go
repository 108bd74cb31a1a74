package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const testService = "localstore.v1.LocalStore"

func TestProbeServing(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := Probe(ctx, addr, testService, nil); err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func TestProbeWaitsWhileMigrating(t *testing.T) {
	addr, setStatus, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	go func() {
		time.Sleep(200 * time.Millisecond)
		setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var logged int
	logf := func(string, ...any) { logged++ }
	if err := Probe(ctx, addr, testService, logf); err != nil {
		t.Fatalf("probe after transition: %v", err)
	}
	if logged == 0 {
		t.Fatal("expected progress to be logged")
	}
}

func TestProbeRespectsContext(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := Probe(ctx, addr, testService, nil)
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}
	if probeErr.Stage != ProbeStageNotReady {
		t.Fatalf("stage = %s, want %s", probeErr.Stage, ProbeStageNotReady)
	}
	if !errors.Is(err, ErrNotServing) {
		t.Fatalf("expected %v in chain, got %v", ErrNotServing, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "NOT_SERVING") {
		t.Fatalf("error %q does not name the last status", err)
	}
}

func TestProbeUnreachableIsHealthStage(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err = Probe(ctx, addr, testService, nil)
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}
	if probeErr.Stage != ProbeStageHealth {
		t.Fatalf("stage = %s, want %s", probeErr.Stage, ProbeStageHealth)
	}
	if errors.Is(err, ErrNotServing) {
		t.Fatalf("unreachable endpoint error = %v, want no %v", err, ErrNotServing)
	}
}

func TestWaitForServingRequiresConn(t *testing.T) {
	if err := WaitForServing(context.Background(), nil, testService, nil); err == nil {
		t.Fatal("expected nil connection error")
	}
}

func TestProbeErrorNil(t *testing.T) {
	var err *ProbeError
	if got := err.Error(); got != "gRPC probe error" {
		t.Fatalf("nil error message = %q", got)
	}
	if err.Unwrap() != nil {
		t.Fatal("expected nil unwrap")
	}
}

func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) (string, func(grpc_health_v1.HealthCheckResponse_ServingStatus), func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	grpcServer := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(testService, status)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	setStatus := func(next grpc_health_v1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus(testService, next)
	}

	stop := func() {
		grpcServer.GracefulStop()
		_ = listener.Close()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}

	return listener.Addr().String(), setStatus, stop
}
