package odex

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Normal operation
	BreakerOpen                         // Circuit is open, requests fail fast
	BreakerHalfOpen                     // Testing if the carrier recovered
)

// ErrBreakerOpen is returned when the circuit breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the outbound ODeX call against cascading failures.
// Transport-level failures trip it; carrier-side HTTP errors do not.
type CircuitBreaker struct {
	maxFailures      int           // Number of failures before opening circuit
	failureThreshold float64       // Failure rate threshold (0.0-1.0)
	cooldownPeriod   time.Duration // Time to wait before attempting half-open
	successThreshold int           // Successes needed to close from half-open

	mu              sync.RWMutex
	state           BreakerState
	failureCount    int
	successCount    int
	totalRequests   int
	lastStateChange time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given thresholds.
func NewCircuitBreaker(maxFailures int, failureThreshold float64, cooldownPeriod time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if failureThreshold <= 0 || failureThreshold > 1 {
		failureThreshold = 0.5
	}
	if cooldownPeriod <= 0 {
		cooldownPeriod = 30 * time.Second
	}

	return &CircuitBreaker{
		maxFailures:      maxFailures,
		failureThreshold: failureThreshold,
		cooldownPeriod:   cooldownPeriod,
		successThreshold: 3,
		state:            BreakerClosed,
	}
}

// Allow reports whether a call may proceed. It handles the open→half-open
// transition once the cooldown period has passed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.RLock()
	state := cb.state
	lastStateChange := cb.lastStateChange
	cb.mu.RUnlock()

	if state != BreakerOpen {
		return nil
	}
	if time.Since(lastStateChange) < cb.cooldownPeriod {
		return ErrBreakerOpen
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BreakerOpen && time.Since(cb.lastStateChange) >= cb.cooldownPeriod {
		cb.state = BreakerHalfOpen
		cb.successCount = 0
		cb.lastStateChange = time.Now()
	}
	return nil
}

// Record feeds one call outcome into the breaker state machine.
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	if failed {
		cb.failureCount++

		// The failure rate only counts once enough calls have been seen,
		// otherwise a single early failure would open the circuit.
		failureRate := float64(cb.failureCount) / float64(cb.totalRequests)
		rateTripped := cb.totalRequests >= cb.maxFailures && failureRate >= cb.failureThreshold
		if cb.state == BreakerHalfOpen {
			// Any failure in half-open state opens the circuit
			cb.state = BreakerOpen
			cb.lastStateChange = time.Now()
		} else if cb.failureCount >= cb.maxFailures || rateTripped {
			if cb.state == BreakerClosed {
				cb.state = BreakerOpen
				cb.lastStateChange = time.Now()
			}
		}
		return
	}

	cb.successCount++

	if cb.state == BreakerHalfOpen {
		if cb.successCount >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.totalRequests = 0
			cb.lastStateChange = time.Now()
		}
	} else if cb.state == BreakerClosed {
		// Sliding window effect: recent successes erase old failures
		if cb.successCount > cb.failureCount {
			cb.failureCount = 0
		}
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset returns the breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.totalRequests = 0
	cb.lastStateChange = time.Now()
}
