package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vruksh/agroqa/internal/breaker"
)

// TestBreakerClosed verifies that the circuit breaker allows requests
// to pass through when in the closed state (normal operation).
func TestBreakerClosed(t *testing.T) {
	cb := breaker.New("test")
	ctx := context.Background()

	result, err := cb.Execute(ctx, func() (interface{}, error) {
		return "success", nil
	})
	if err != nil {
		t.Fatalf("Expected successful execution in closed state, got error: %v", err)
	}
	if result != "success" {
		t.Fatalf("Expected result 'success', got: %v", result)
	}

	if state := cb.State(); state != "closed" {
		t.Fatalf("Expected circuit to be closed, got: %s", state)
	}
}

// TestBreakerOpensAfterConsecutiveFailures verifies that after 3
// consecutive failures the circuit opens and rejects requests.
func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := breaker.New("test")
	ctx := context.Background()

	failFunc := func() (interface{}, error) {
		return nil, errors.New("operation failed")
	}

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(ctx, failFunc); err == nil {
			t.Fatalf("Expected error on attempt %d", i+1)
		}
	}

	if state := cb.State(); state != "open" {
		t.Fatalf("Expected circuit to be open after 3 failures, got: %s", state)
	}

	_, err := cb.Execute(ctx, failFunc)
	if err == nil {
		t.Fatal("Expected circuit breaker to reject request in open state")
	}
	if !errors.Is(err, breaker.ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got: %v", err)
	}
}

// TestBreakerRecoversThroughHalfOpen verifies that after the timeout the
// circuit admits test requests and closes again on success.
func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := breaker.NewWithConfig("test", breaker.Config{
		MaxFailures:          3,
		Timeout:              100 * time.Millisecond,
		HalfOpenMaxSuccesses: 2,
	})
	ctx := context.Background()

	failFunc := func() (interface{}, error) {
		return nil, errors.New("operation failed")
	}
	successFunc := func() (interface{}, error) {
		return "ok", nil
	}

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(ctx, failFunc)
	}
	if state := cb.State(); state != "open" {
		t.Fatalf("Expected circuit to be open, got: %s", state)
	}

	// Poll until the breaker leaves the open state.
	deadline := time.After(2 * time.Second)
	for cb.State() == "open" {
		select {
		case <-deadline:
			t.Fatal("Circuit did not transition out of open state in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(ctx, successFunc); err != nil {
			t.Fatalf("Expected success during recovery, got: %v", err)
		}
	}

	if state := cb.State(); state != "closed" {
		t.Fatalf("Expected circuit to close after successful recovery, got: %s", state)
	}
}

// TestBreakerCancelledContext verifies that an already-cancelled context
// is rejected without invoking the wrapped function.
func TestBreakerCancelledContext(t *testing.T) {
	cb := breaker.New("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if called {
		t.Fatal("Wrapped function must not run when context is already cancelled")
	}
}

func TestBreakerMetrics(t *testing.T) {
	cb := breaker.New("test")
	ctx := context.Background()

	_, _ = cb.Execute(ctx, func() (interface{}, error) { return nil, nil })
	_, _ = cb.Execute(ctx, func() (interface{}, error) { return nil, errors.New("boom") })

	m := cb.Metrics()
	if m.TotalRequests != 2 {
		t.Errorf("Expected 2 total requests, got %d", m.TotalRequests)
	}
	if m.TotalSuccesses != 1 {
		t.Errorf("Expected 1 success, got %d", m.TotalSuccesses)
	}
	if m.TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", m.TotalFailures)
	}
}
