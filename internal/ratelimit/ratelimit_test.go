package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPassThroughWhenUnconfigured(t *testing.T) {
	l := New(0, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	for i := 0; i < 1000; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("unconfigured limiter should never block: %v", err)
		}
	}
}

func TestBoundedRateOverWindow(t *testing.T) {
	l := New(100, false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	count := 0
	for time.Since(start) < time.Second {
		if err := l.Acquire(ctx); err != nil {
			break
		}
		count++
	}
	// testable property #5: emitted probes <= configured PPS * 1.05 over any 1s window.
	if float64(count) > 100*1.05 {
		t.Fatalf("emitted %d probes in ~1s, want <= %d", count, int(100*1.05))
	}
}

func TestOnQuenchHalvesRate(t *testing.T) {
	l := New(1000, true)
	before := l.CurrentRate()
	l.OnQuench()
	after := l.CurrentRate()
	if after > before/2+0.001 {
		t.Fatalf("expected rate to halve on quench: before=%v after=%v", before, after)
	}
}

func TestOnStableSecondIncreasesRate(t *testing.T) {
	l := New(1000, true)
	l.OnQuench()
	reduced := l.CurrentRate()
	l.lastIncrease = time.Now().Add(-2 * time.Second)
	l.OnStableSecond()
	increased := l.CurrentRate()
	if increased <= reduced {
		t.Fatalf("expected rate to increase after a stable second: reduced=%v increased=%v", reduced, increased)
	}
}
