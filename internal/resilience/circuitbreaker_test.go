package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "kis-board/internal/errors"
)

var errBoom = errors.New("boom")

func fail(ctx context.Context) error {
	return errBoom
}

func succeed(ctx context.Context) error {
	return nil
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("kis", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: 30 * time.Second})
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() = %v, want errBoom", err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %s, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, apperrors.ErrUpstreamRequest) {
		t.Errorf("open breaker returned %v", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}

	now = now.Add(31 * time.Second)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("half-open trial call failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %s, want CLOSED", cb.State())
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 2 || stats.TotalSuccesses != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("kis", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})
	cb.now = func() time.Time { return now }

	cb.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)
	cb.Execute(context.Background(), fail)

	if cb.State() != CircuitOpen {
		t.Errorf("State() = %s, want OPEN", cb.State())
	}
}

func TestCircuitBreaker_TripsFilter(t *testing.T) {
	business := errors.New("unknown symbol")
	cb := NewCircuitBreaker("kis", CircuitBreakerConfig{
		FailureThreshold: 1,
		Trips:            func(err error) bool { return !errors.Is(err, business) },
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func(ctx context.Context) error { return business }); !errors.Is(err, business) {
			t.Fatalf("Execute() = %v", err)
		}
	}
	cb.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })

	if cb.State() != CircuitClosed {
		t.Errorf("non-tripping errors opened the circuit")
	}

	cb.Execute(context.Background(), fail)
	if cb.State() != CircuitOpen {
		t.Errorf("State() = %s, want OPEN", cb.State())
	}
	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("Reset() left state %s", cb.State())
	}
}
