// Package resource implements component C4: periodic memory/CPU/FD
// observation that emits degradation signals consumed by the Rate Limiter.
// Grounded on internal/pkg/monitor/metrics.go's use of
// github.com/shirou/gopsutil/v3 (cpu/mem subpackages) with a runtime
// fallback, generalized from a one-shot heartbeat sample into a polling
// monitor with soft/hard thresholds.
package resource

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Signal is the tri-state degradation level (spec §4.4).
type Signal int32

const (
	SignalNormal Signal = iota
	SignalDegraded
	SignalCritical
)

func (s Signal) String() string {
	switch s {
	case SignalDegraded:
		return "degraded"
	case SignalCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Thresholds configures the soft (Degraded) and hard (Critical) limits.
type Thresholds struct {
	MemSoftPercent float64
	MemHardPercent float64
	CPUSoftPercent float64
	CPUHardPercent float64
	FDSoftCount    uint64
	FDHardCount    uint64
}

// DefaultThresholds mirrors common Nmap-class operator expectations: the
// soft (Degraded) limits sit well before exhaustion, the hard (Critical)
// limits close to it. The scheduler halves the token rate on Degraded and
// restores it on Normal; Critical is published as an event only and does
// not pause probe emission.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemSoftPercent: 80,
		MemHardPercent: 95,
		CPUSoftPercent: 90,
		CPUHardPercent: 98,
		FDSoftCount:    uint64(softFDLimit()),
		FDHardCount:    uint64(hardFDLimit()),
	}
}

func softFDLimit() int { return 8000 }
func hardFDLimit() int { return 9500 }

// Sample is one poll's readings.
type Sample struct {
	MemoryPercent float64
	CPUPercent    float64
	OpenFDs       uint64
	Signal        Signal
}

// Monitor polls system resource usage at a fixed interval (default 500ms,
// spec §4.4) and exposes the latest Signal without blocking the poller.
type Monitor struct {
	interval   time.Duration
	thresholds Thresholds
	pid        int32

	signal atomic.Int32

	mu     sync.RWMutex
	latest Sample

	onChange func(Signal)
}

// New creates a Monitor for the current process.
func New(thresholds Thresholds, onChange func(Signal)) *Monitor {
	return &Monitor{
		interval:   500 * time.Millisecond,
		thresholds: thresholds,
		pid:        int32(os.Getpid()),
		onChange:   onChange,
	}
}

// Run polls until ctx is cancelled. Intended to run as the "monitor task"
// of the concurrency model (spec §5), at roughly 2Hz.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	s := Sample{}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else {
		s.CPUPercent = 0
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vm.UsedPercent
	}

	if p, err := process.NewProcess(m.pid); err == nil {
		if fds, err := p.NumFDs(); err == nil {
			s.OpenFDs = uint64(fds)
		}
	}
	if s.OpenFDs == 0 {
		// gopsutil's FD introspection is Linux/macOS-procfs-backed; fall
		// back to a coarse estimate via the Go runtime on platforms where
		// it returns nothing rather than reporting a false zero.
		s.OpenFDs = uint64(runtime.NumGoroutine())
	}

	s.Signal = classify(s, m.thresholds)

	m.mu.Lock()
	m.latest = s
	m.mu.Unlock()

	old := Signal(m.signal.Swap(int32(s.Signal)))
	if old != s.Signal && m.onChange != nil {
		m.onChange(s.Signal)
	}
}

func classify(s Sample, t Thresholds) Signal {
	if s.MemoryPercent >= t.MemHardPercent || s.CPUPercent >= t.CPUHardPercent || s.OpenFDs >= t.FDHardCount {
		return SignalCritical
	}
	if s.MemoryPercent >= t.MemSoftPercent || s.CPUPercent >= t.CPUSoftPercent || s.OpenFDs >= t.FDSoftCount {
		return SignalDegraded
	}
	return SignalNormal
}

// Latest returns the most recent sample without blocking the poller.
func (m *Monitor) Latest() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// CurrentSignal returns the latest classified signal via an atomic load.
func (m *Monitor) CurrentSignal() Signal {
	return Signal(m.signal.Load())
}
