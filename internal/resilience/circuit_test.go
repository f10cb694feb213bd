package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	fail := func(_ context.Context) error { return errors.New("search failed") }
	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), fail); err == nil {
			t.Fatal("expected failure")
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open circuit, got %s", cb.State())
	}

	var called bool
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn should not run while circuit is open")
	}
}

func TestCircuitSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("one") })
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("two") })

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed circuit, got %s", cb.State())
	}
}

func TestCircuitHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("down") })
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	// Past the reset timeout the breaker allows a probe.
	now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("down") })
	now = now.Add(11 * time.Second)

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("still down") })
	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestExecuteValPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestCircuitReset(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("boom") })
	cb.Reset()

	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after reset, got %s", cb.State())
	}
	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
