package health

import (
	"time"
)

// BreakerState is the circuit breaker state for one provider
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens
	// the breaker
	DefaultFailureThreshold = 5

	// DefaultCooldown is how long an open breaker waits before allowing a
	// half-open trial
	DefaultCooldown = 60 * time.Second
)

// CircuitBreaker is the per-provider failure isolation state machine.
// It is not internally synchronized; the monitor serializes access
// through the per-provider lock.
type CircuitBreaker struct {
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time
	failureThreshold    int
	cooldown            time.Duration
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments fall
// back to the defaults.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// RecordSuccess resets the breaker. A half-open trial success closes it.
func (b *CircuitBreaker) RecordSuccess() {
	b.state = BreakerClosed
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure. The breaker opens when the consecutive
// failure count reaches the threshold, and a half-open trial failure
// re-opens it with the cool-down restarted.
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.lastFailure = now

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = BreakerOpen
	}
}

// Allow admits or blocks one call at now. Once the cool-down has elapsed
// the breaker moves to half-open and admits exactly one trial call;
// further calls are blocked until the trial outcome is recorded. Only the
// dispatch path may call Allow; introspection uses IsOpen.
func (b *CircuitBreaker) Allow(now time.Time) bool {
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		// Trial already in flight
		return false
	default: // open
		if now.Sub(b.lastFailure) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	}
}

// IsOpen reports whether a call at now would be blocked, without
// consuming the half-open trial or changing state. An open breaker whose
// cool-down has elapsed reports false: the next Allow would admit a trial.
func (b *CircuitBreaker) IsOpen(now time.Time) bool {
	switch b.state {
	case BreakerClosed:
		return false
	case BreakerHalfOpen:
		return true
	default: // open
		return now.Sub(b.lastFailure) < b.cooldown
	}
}

// State returns the current breaker state without side effects.
func (b *CircuitBreaker) State() BreakerState {
	return b.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	return b.consecutiveFailures
}
