package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("rate limited"), 429)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	var calls int
	permanent := errors.New("invalid api key")
	err := Do(context.Background(), fastRetryConfig(5), func(_ context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("still down"), 503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := Do(ctx, fastRetryConfig(10), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("transient"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancellation, got %d", calls)
	}
}

func TestDoValReturnsValue(t *testing.T) {
	var calls int
	got, err := DoVal(context.Background(), fastRetryConfig(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("flaky"), 502)
		}
		return "details", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "details" {
		t.Errorf("expected %q, got %q", "details", got)
	}
}

func TestDoValCustomShouldRetry(t *testing.T) {
	cfg := fastRetryConfig(3)
	cfg.ShouldRetry = func(error) bool { return true }

	var calls int
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("not normally transient")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls with custom ShouldRetry, got %d", calls)
	}
}

func TestComputeBackoffCapped(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     10.0,
	}
	if got := computeBackoff(5, cfg); got > 300*time.Millisecond {
		t.Errorf("backoff %v exceeds cap", got)
	}
}
