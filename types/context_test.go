package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := RequestID(ctx); ok {
		t.Fatal("RequestID should be absent")
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithAttempt(ctx, 2)
	if got, ok := Attempt(ctx); !ok || got != 2 {
		t.Fatalf("Attempt mismatch: %v %v", got, ok)
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_EmptyValues(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "")
	if _, ok := RequestID(ctx); ok {
		t.Fatal("empty request id should report absent")
	}
	ctx = WithAttempt(ctx, 0)
	if _, ok := Attempt(ctx); ok {
		t.Fatal("attempt 0 should report absent")
	}
}
