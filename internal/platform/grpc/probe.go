// Package grpc holds client helpers for probing local store gRPC endpoints.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrNotServing reports that the endpoint answered health checks but never
// reported SERVING, which for the store means migrations did not finish.
var ErrNotServing = errors.New("store never reported SERVING")

// ProbeStage describes where a probe failed.
type ProbeStage string

const (
	// ProbeStageConnect indicates the client could not be created.
	ProbeStageConnect ProbeStage = "connect"
	// ProbeStageHealth indicates the endpoint never answered a health check.
	ProbeStageHealth ProbeStage = "health"
	// ProbeStageNotReady indicates the store answered but was still opening.
	ProbeStageNotReady ProbeStage = "not-ready"
)

// ProbeError wraps probe failures with a stage indicator.
type ProbeError struct {
	Stage ProbeStage
	Err   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e == nil {
		return "gRPC probe error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientDialOptions returns dial options for loopback probes. The OTel stats
// handler propagates trace context when a TracerProvider is registered.
func ClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Probe connects to addr and blocks until service reports SERVING or ctx
// ends. A store still migrating reports NOT_SERVING, so Probe keeps waiting.
func Probe(ctx context.Context, addr, service string, logf func(string, ...any)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := gogrpc.NewClient(addr, ClientDialOptions()...)
	if err != nil {
		return &ProbeError{Stage: ProbeStageConnect, Err: err}
	}
	defer conn.Close()

	if err := WaitForServing(ctx, conn, service, logf); err != nil {
		stage := ProbeStageHealth
		if errors.Is(err, ErrNotServing) {
			stage = ProbeStageNotReady
		}
		return &ProbeError{Stage: stage, Err: err}
	}
	return nil
}

// WaitForServing polls the health service with capped exponential backoff
// until it reports SERVING or ctx ends. When ctx ends after the service had
// answered, the error wraps ErrNotServing with the last reported status.
func WaitForServing(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	var (
		answered bool
		last     grpc_health_v1.HealthCheckResponse_ServingStatus
	)
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil {
			answered = true
			last = response.GetStatus()
			if last == grpc_health_v1.HealthCheckResponse_SERVING {
				if logf != nil {
					logf("%q is SERVING after %d checks", service, attempt)
				}
				return nil
			}
		}
		if logf != nil {
			switch {
			case err != nil:
				logf("%q unreachable (check %d): %v", service, attempt, err)
			case last == grpc_health_v1.HealthCheckResponse_NOT_SERVING:
				logf("%q still opening the store (check %d)", service, attempt)
			default:
				logf("%q reported %s (check %d)", service, last.String(), attempt)
			}
		}

		select {
		case <-ctx.Done():
			if answered {
				return fmt.Errorf("%w: %q last reported %s after %d checks: %w", ErrNotServing, service, last.String(), attempt, ctx.Err())
			}
			return fmt.Errorf("wait for %q after %d checks: %w", service, attempt, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff = min(backoff*2, time.Second)
		}
	}
}
