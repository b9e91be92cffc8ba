// Package progress implements component C12: an event-driven progress
// aggregator that subscribes to internal/eventbus and maintains a
// latest-wins snapshot of scan completion, throughput, and ETA.
//
// Grounded on original_source/crates/prtip-core/src/progress/mod.rs's
// documented design (ProgressAggregator auto-subscribing to ProgressUpdate/
// ThroughputSample events, ProgressCalculator's EWMA-smoothed ETA, and
// ThroughputMonitor's 5-second moving average) — the concrete aggregator.rs/
// calculator.rs/monitor.rs submodules were not retained in the pack, so the
// math below is reconstructed from that module doc and spec.md's EWMA
// α=0.2 invariant rather than ported line-for-line.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"prtip/internal/core/events"
	"prtip/internal/eventbus"
)

// ewmaAlpha is the smoothing factor for the throughput moving average.
const ewmaAlpha = 0.2

// throughputWindow is the span over which raw samples are folded into the
// moving average before being fed through the EWMA.
const throughputWindow = 5 * time.Second

// Snapshot is the latest-wins view of one scan's progress, safe to read
// concurrently with Aggregator updates.
type Snapshot struct {
	ScanID          uuid.UUID
	Completed       int
	Total           int
	PercentComplete float64
	PacketsPerSec   float64
	PortsPerSec     float64
	OpenPorts       int
	ETA             time.Duration
	Stage           events.ScanStage
	UpdatedAt       time.Time
}

type sample struct {
	at      time.Time
	packets float64
}

// Aggregator maintains one Snapshot per scan ID, updated as ProgressUpdate
// and ThroughputSample events arrive on the bus. Reads and updates share one
// RWMutex over a plain map (no per-scan goroutine): concurrent reads do not
// block each other, and a read waits only for an update in progress.
type Aggregator struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*Snapshot
	recent    map[uuid.UUID][]sample
	ewma      map[uuid.UUID]float64

	sub *eventbus.Subscription
}

// New creates an Aggregator subscribed to all Progress-category events on
// bus. Call Close to unsubscribe.
func New(bus *eventbus.Bus) *Aggregator {
	a := &Aggregator{
		snapshots: make(map[uuid.UUID]*Snapshot),
		recent:    make(map[uuid.UUID][]sample),
		ewma:      make(map[uuid.UUID]float64),
	}
	a.sub = bus.Subscribe(eventbus.Filter{
		Kind: eventbus.FilterByEventType,
		Types: map[events.EventType]struct{}{
			events.EventProgressUpdate:   {},
			events.EventThroughputSample: {},
			events.EventScanStarted:      {},
			events.EventScanCompleted:    {},
			events.EventScanCancelled:    {},
		},
	})
	go a.run()
	return a
}

// Close unsubscribes the aggregator from the bus; the background goroutine
// exits once the subscription channel closes.
func (a *Aggregator) Close() {
	a.sub.Unsubscribe()
}

func (a *Aggregator) run() {
	for e := range a.sub.Events() {
		a.handle(e)
	}
}

func (a *Aggregator) handle(e events.ScanEvent) {
	switch e.Type {
	case events.EventScanStarted:
		a.start(e.ScanID)
	case events.EventProgressUpdate:
		if p, ok := e.Payload.(events.ProgressUpdatePayload); ok {
			a.applyProgress(e.ScanID, p, e.Timestamp)
		}
	case events.EventThroughputSample:
		if t, ok := e.Payload.(events.ThroughputSamplePayload); ok {
			a.applyThroughput(e.ScanID, t.Throughput, e.Timestamp)
		}
	case events.EventScanCompleted, events.EventScanCancelled:
		a.finish(e.ScanID)
	}
}

func (a *Aggregator) start(scanID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[scanID] = &Snapshot{ScanID: scanID, Stage: events.StageDiscovery, UpdatedAt: time.Now()}
}

func (a *Aggregator) applyProgress(scanID uuid.UUID, p events.ProgressUpdatePayload, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.snapshots[scanID]
	if !ok {
		snap = &Snapshot{ScanID: scanID}
		a.snapshots[scanID] = snap
	}
	snap.PercentComplete = p.PercentComplete
	snap.OpenPorts = p.OpenPorts
	snap.ETA = p.ETA
	if p.PacketsPerSec > 0 {
		snap.PacketsPerSec = p.PacketsPerSec
	}
	if p.PortsPerSec > 0 {
		snap.PortsPerSec = p.PortsPerSec
	}
	snap.UpdatedAt = at
}

// applyThroughput folds a raw throughput sample into the 5-second window
// and re-smooths it with an EWMA (α=0.2), matching spec.md's invariant.
func (a *Aggregator) applyThroughput(scanID uuid.UUID, t events.Throughput, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := append(a.recent[scanID], sample{at: at, packets: t.PacketsPerSec})
	cutoff := at.Add(-throughputWindow)
	kept := samples[:0]
	for _, s := range samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	a.recent[scanID] = kept

	var sum float64
	for _, s := range kept {
		sum += s.packets
	}
	avg := t.PacketsPerSec
	if len(kept) > 0 {
		avg = sum / float64(len(kept))
	}

	prev, seeded := a.ewma[scanID]
	var smoothed float64
	if !seeded {
		smoothed = avg
	} else {
		smoothed = ewmaAlpha*avg + (1-ewmaAlpha)*prev
	}
	a.ewma[scanID] = smoothed

	snap, ok := a.snapshots[scanID]
	if !ok {
		snap = &Snapshot{ScanID: scanID}
		a.snapshots[scanID] = snap
	}
	snap.PacketsPerSec = smoothed
	snap.PortsPerSec = t.PortsPerSec
	snap.UpdatedAt = at
}

func (a *Aggregator) finish(scanID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if snap, ok := a.snapshots[scanID]; ok {
		snap.PercentComplete = 100
		snap.ETA = 0
		snap.UpdatedAt = time.Now()
	}
}

// Snapshot returns the current progress for scanID, or false if no events
// for that scan have been observed yet. Non-blocking: always returns the
// latest value written so far, never waits for a fresher one.
func (a *Aggregator) Snapshot(scanID uuid.UUID) (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[scanID]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// EstimateETA computes a remaining-time estimate from a completed/total
// count and a smoothed rate, used by callers that compute ETA themselves
// (e.g. the scheduler) before it is folded into a ProgressUpdatePayload.
func EstimateETA(completed, total int, ratePerSec float64) time.Duration {
	if ratePerSec <= 0 || total <= completed {
		return 0
	}
	remaining := float64(total - completed)
	return time.Duration(remaining/ratePerSec) * time.Second
}
