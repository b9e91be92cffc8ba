package eventbus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"prtip/internal/core/events"
)

func TestPublishSubscribeAll(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe(Filter{Kind: FilterAll})
	defer sub.Unsubscribe()

	scanID := uuid.New()
	bus.Publish(events.New(events.EventScanStarted, scanID, nil))

	select {
	case e := <-sub.Events():
		if e.Type != events.EventScanStarted {
			t.Fatalf("got type %v, want ScanStarted", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFilterByScanID(t *testing.T) {
	bus := New(4)
	wantID := uuid.New()
	otherID := uuid.New()
	sub := bus.Subscribe(Filter{Kind: FilterByScanID, ScanID: wantID})
	defer sub.Unsubscribe()

	bus.Publish(events.New(events.EventScanStarted, otherID, nil))
	bus.Publish(events.New(events.EventScanCompleted, wantID, nil))

	select {
	case e := <-sub.Events():
		if e.ScanID != wantID {
			t.Fatalf("got scan id %v, want %v", e.ScanID, wantID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestDropOldestNeverBlocks(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe(Filter{Kind: FilterAll})
	defer sub.Unsubscribe()

	scanID := uuid.New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(events.New(events.EventPortFound, scanID, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}

	if bus.Metrics().Dropped() == 0 {
		t.Fatal("expected at least one dropped event when producer outpaces a bounded queue")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe(Filter{Kind: FilterAll})
	sub.Unsubscribe()

	scanID := uuid.New()
	bus.Publish(events.New(events.EventScanStarted, scanID, nil))

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel after unsubscribe, got a delivered event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after unsubscribe")
	}
}
