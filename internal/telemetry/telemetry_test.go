package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "  ", "cipher-rooms")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
}

func TestSetupWithEndpointRegistersProvider(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, "http://127.0.0.1:4318/v1/traces", "cipher-rooms-test")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	_ = shutdown(ctx)
}
