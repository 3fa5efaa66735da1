package odex

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 0.5, time.Minute)

	for i := 0; i < 2; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("call %d unexpectedly rejected: %v", i, err)
		}
		cb.Record(true)
	}
	if cb.State() != BreakerClosed {
		t.Fatal("expected breaker still closed below the failure limit")
	}

	cb.Record(true)
	if cb.State() != BreakerOpen {
		t.Fatal("expected breaker open after reaching the failure limit")
	}
	if err := cb.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestCircuitBreaker_SingleEarlyFailureStaysClosed(t *testing.T) {
	cb := NewCircuitBreaker(10, 0.5, time.Minute)

	cb.Record(true)
	if cb.State() != BreakerClosed {
		t.Fatal("one failure on a cold breaker must not open it")
	}
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected calls still allowed, got %v", err)
	}
}

func TestCircuitBreaker_SuccessesEraseOldFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 0.9, time.Minute)

	cb.Record(true)
	cb.Record(true)
	cb.Record(false)
	cb.Record(false)
	cb.Record(false)

	// A later burst up to the old failure count must start from zero.
	cb.Record(true)
	cb.Record(true)
	if cb.State() != BreakerClosed {
		t.Fatal("expected failures reset by the intervening successes")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(2, 0.9, 20*time.Millisecond)

	cb.Record(true)
	cb.Record(true)
	if cb.State() != BreakerOpen {
		t.Fatal("expected breaker open")
	}

	time.Sleep(30 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open probe to be allowed, got %v", err)
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatal("expected breaker half-open after cooldown")
	}

	for i := 0; i < 3; i++ {
		cb.Record(false)
	}
	if cb.State() != BreakerClosed {
		t.Fatal("expected breaker closed after the success streak")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 0.9, 20*time.Millisecond)

	cb.Record(true)
	cb.Record(true)
	time.Sleep(30 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open probe to be allowed, got %v", err)
	}

	cb.Record(true)
	if cb.State() != BreakerOpen {
		t.Fatal("expected breaker reopened after a failed probe")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, 0.9, time.Minute)

	cb.Record(true)
	if cb.State() != BreakerOpen {
		t.Fatal("expected breaker open")
	}

	cb.Reset()
	if cb.State() != BreakerClosed {
		t.Fatal("expected breaker closed after reset")
	}
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected calls allowed after reset, got %v", err)
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0, 0)
	if cb.maxFailures != 10 {
		t.Errorf("expected default maxFailures 10, got %d", cb.maxFailures)
	}
	if cb.failureThreshold != 0.5 {
		t.Errorf("expected default failureThreshold 0.5, got %v", cb.failureThreshold)
	}
	if cb.cooldownPeriod != 30*time.Second {
		t.Errorf("expected default cooldown 30s, got %v", cb.cooldownPeriod)
	}
}
