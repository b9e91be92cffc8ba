package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"prtip/internal/core/events"
	"prtip/internal/eventbus"
)

func TestAggregatorTracksProgressUpdate(t *testing.T) {
	bus := eventbus.New(16)
	agg := New(bus)
	defer agg.Close()

	scanID := uuid.New()
	bus.Publish(events.New(events.EventScanStarted, scanID, nil))
	bus.Publish(events.New(events.EventProgressUpdate, scanID, events.ProgressUpdatePayload{
		PercentComplete: 42.5,
		PacketsPerSec:   1000,
		PortsPerSec:     500,
		OpenPorts:       3,
		ETA:             10 * time.Second,
	}))

	deadline := time.After(time.Second)
	for {
		snap, ok := agg.Snapshot(scanID)
		if ok && snap.PercentComplete == 42.5 {
			if snap.OpenPorts != 3 {
				t.Fatalf("expected 3 open ports, got %d", snap.OpenPorts)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for progress snapshot")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestAggregatorSmoothsThroughputWithEWMA(t *testing.T) {
	bus := eventbus.New(16)
	agg := New(bus)
	defer agg.Close()

	scanID := uuid.New()
	bus.Publish(events.New(events.EventScanStarted, scanID, nil))
	bus.Publish(events.New(events.EventThroughputSample, scanID, events.ThroughputSamplePayload{
		Throughput: events.Throughput{PacketsPerSec: 100, PortsPerSec: 50},
	}))
	bus.Publish(events.New(events.EventThroughputSample, scanID, events.ThroughputSamplePayload{
		Throughput: events.Throughput{PacketsPerSec: 200, PortsPerSec: 60},
	}))

	deadline := time.After(time.Second)
	for {
		snap, ok := agg.Snapshot(scanID)
		if ok && snap.PacketsPerSec > 0 && snap.PortsPerSec == 60 {
			if snap.PacketsPerSec <= 100 || snap.PacketsPerSec >= 200 {
				t.Fatalf("expected smoothed rate strictly between 100 and 200, got %v", snap.PacketsPerSec)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for throughput snapshot")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestAggregatorMarksCompletion(t *testing.T) {
	bus := eventbus.New(16)
	agg := New(bus)
	defer agg.Close()

	scanID := uuid.New()
	bus.Publish(events.New(events.EventScanStarted, scanID, nil))
	bus.Publish(events.New(events.EventScanCompleted, scanID, nil))

	deadline := time.After(time.Second)
	for {
		snap, ok := agg.Snapshot(scanID)
		if ok && snap.PercentComplete == 100 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion snapshot")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestEstimateETA(t *testing.T) {
	eta := EstimateETA(50, 150, 10)
	if eta != 10*time.Second {
		t.Fatalf("expected 10s ETA, got %v", eta)
	}
	if got := EstimateETA(100, 100, 10); got != 0 {
		t.Fatalf("expected 0 ETA once complete, got %v", got)
	}
	if got := EstimateETA(0, 100, 0); got != 0 {
		t.Fatalf("expected 0 ETA with zero rate, got %v", got)
	}
}
