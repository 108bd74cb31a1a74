package otel_test

import (
	"context"
	"testing"

	"github.com/ecomarket/localstore/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("ECOMARKET_OTEL_ENDPOINT", "")
	t.Setenv("ECOMARKET_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("ECOMARKET_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("ECOMARKET_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetup_RejectsMalformedEnv(t *testing.T) {
	t.Setenv("ECOMARKET_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("ECOMARKET_OTEL_ENABLED", "maybe")

	if _, err := otel.Setup(context.Background(), "test-service"); err == nil {
		t.Fatal("expected malformed enabled flag to fail")
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no actual export happens.
	t.Setenv("ECOMARKET_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("ECOMARKET_OTEL_ENABLED", "")
	t.Setenv("ECOMARKET_OTEL_SAMPLE_RATIO", "0.5")

	shutdown, err := otel.Setup(context.Background(), "localstore-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
