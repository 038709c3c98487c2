package telemetry

import (
	"context"
	"testing"
)

func TestSetup_DisabledReturnsNoOpShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected a non-nil shutdown func even when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected the no-op shutdown to succeed, got: %v", err)
	}
}
