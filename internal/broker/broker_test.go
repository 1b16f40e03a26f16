package broker

import (
	"context"
	"testing"
)

func TestCallsFailFastOnCancelledContext(t *testing.T) {
	client := New("key", "secret", "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Account(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled from Account, got %v", err)
	}
	if _, err := client.Clock(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled from Clock, got %v", err)
	}
	if err := client.CancelOrder(ctx, "order-1"); err != context.Canceled {
		t.Fatalf("expected context.Canceled from CancelOrder, got %v", err)
	}
}
