// Package ratelimit implements component C3: a token-bucket rate limiter
// with an adaptive controller. Grounded in code shape on
// internal/core/lib/network/qos/limiter.go's AdaptiveLimiter (semaphore +
// atomic debt accounting, Acquire/Release/OnSuccess/OnFailure), but the
// increase/decrease arithmetic is the spec's own: factor 0.5 on ICMP
// quench, +10% (×1.10 of the current rate) per stable second thereafter (the teacher's 0.7
// multiplier is not reused numerically, spec §9 design note).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces probe emission to a packets-per-second budget. When no rate
// is configured it is a pass-through (spec §4.3).
type Limiter struct {
	mu sync.Mutex

	targetPPS   float64 // 0 = unlimited / pass-through
	currentPPS  float64
	minPPS      float64
	maxPPS      float64
	adaptive    bool

	tokens     float64
	lastRefill time.Time

	lastIncrease time.Time
}

// New creates a Limiter. targetPPS of 0 makes Acquire a no-op pass-through.
// When adaptive is true, OnQuench/OnStableSecond adjust currentPPS within
// [minPPS, maxPPS].
func New(targetPPS int, adaptive bool) *Limiter {
	pps := float64(targetPPS)
	l := &Limiter{
		targetPPS:    pps,
		currentPPS:   pps,
		minPPS:       1,
		maxPPS:       pps,
		adaptive:     adaptive,
		lastRefill:   time.Now(),
		lastIncrease: time.Now(),
	}
	if pps == 0 {
		l.maxPPS = 0
	}
	return l
}

// Acquire blocks the caller until one token is available, or ctx is done.
// When the limiter is unconfigured (targetPPS == 0), it returns immediately.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.targetPPS == 0 {
		l.mu.Unlock()
		return nil
	}
	for {
		l.refillLocked()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration(float64(time.Second) / l.currentRateLocked())
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		l.mu.Lock()
	}
}

func (l *Limiter) currentRateLocked() float64 {
	if l.currentPPS <= 0 {
		return 1
	}
	return l.currentPPS
}

func (l *Limiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now
	l.tokens += elapsed * l.currentRateLocked()
	cap := l.currentRateLocked()
	if l.tokens > cap {
		l.tokens = cap
	}
}

// OnQuench applies the multiplicative decrease (factor 0.5) in response to
// an ICMP source-quench or an observed loss spike. A no-op when adaptive
// control is disabled or the limiter is unconfigured.
func (l *Limiter) OnQuench() {
	if !l.adaptive || l.targetPPS == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentPPS *= 0.5
	if l.currentPPS < l.minPPS {
		l.currentPPS = l.minPPS
	}
	l.lastIncrease = time.Now()
}

// OnStableSecond multiplies the current rate by 1.10, capped at maxPPS, at
// most once per second. A no-op when adaptive control is disabled or the
// limiter is unconfigured.
func (l *Limiter) OnStableSecond() {
	if !l.adaptive || l.targetPPS == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastIncrease) < time.Second {
		return
	}
	l.currentPPS *= 1.10
	if l.currentPPS > l.maxPPS {
		l.currentPPS = l.maxPPS
	}
	l.lastIncrease = time.Now()
}

// HalveTokenRate is invoked by the scheduler when the Resource Monitor (C4)
// signals Degraded.
func (l *Limiter) HalveTokenRate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.targetPPS == 0 {
		return
	}
	l.currentPPS *= 0.5
	if l.currentPPS < l.minPPS {
		l.currentPPS = l.minPPS
	}
}

// RestoreTokenRate undoes HalveTokenRate once the Resource Monitor clears
// back to Normal.
func (l *Limiter) RestoreTokenRate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.targetPPS == 0 {
		return
	}
	l.currentPPS = l.targetPPS
}

// CurrentRate reports the effective rate, for diagnostics/tests.
func (l *Limiter) CurrentRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentPPS
}
