package scheduler

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker tracks consecutive probe failures for one target. Once a
// threshold is crossed the target is parked for a cool-down; after the
// cool-down Allow admits a single half-open trial, and one success
// closes the breaker again (spec §4.6).
//
// Open Question (c) resolved: the breaker does not choose a lighter probe.
// The scheduler's runHostgroup calls Allow once per target per hostgroup,
// so the half-open trial is that target's whole port list for the
// hostgroup, dispatched with the scan's own variant.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	coolDown  time.Duration

	state           breakerState
	consecutiveFail int
	openedAt        time.Time
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for coolDown before allowing a half-open probe.
func NewCircuitBreaker(threshold int, coolDown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, coolDown: coolDown}
}

// Allow reports whether a probe may proceed against this target right now.
// In the half-open window it admits exactly one probe and flips to a
// pending state until that probe's outcome is recorded.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) >= b.coolDown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	case breakerHalfOpen:
		// Another probe already claimed the half-open slot; block until
		// RecordSuccess/RecordFailure resolves it.
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.consecutiveFail = 0
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is crossed (or immediately, if the failing probe was the
// half-open trial).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.threshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// State reports the breaker's current state as a string, for diagnostics.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
