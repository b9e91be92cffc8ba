package probestore

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"prtip/internal/core/model"
)

func testProbe(port uint16) *model.Probe {
	p := model.NewProbe(uuid.New(), net.ParseIP("127.0.0.1"), port, model.ProtoTCP, model.VariantSYN, time.Millisecond)
	p.Key = model.ProbeKey{Protocol: model.ProtoTCP, LocalPort: 40000, RemoteIP: "127.0.0.1", RemotePort: port}
	p.State = model.ProbeInFlight
	return p
}

func TestInsertLookupRemove(t *testing.T) {
	s := New(3)
	p := testProbe(80)
	s.Insert(p)

	got, ok := s.Lookup(p.Key)
	if !ok || got.Port != 80 {
		t.Fatalf("lookup failed: ok=%v got=%+v", ok, got)
	}

	s.Remove(p.Key)
	if _, ok := s.Lookup(p.Key); ok {
		t.Fatal("expected probe to be gone after Remove")
	}
}

func TestSweepExpiresAndRetries(t *testing.T) {
	s := New(3)
	p := testProbe(443)
	p.Deadline = time.Now().Add(-time.Second)
	s.Insert(p)

	retry, exhausted := s.Sweep(time.Now())
	if len(retry) != 1 || len(exhausted) != 0 {
		t.Fatalf("expected 1 retry, 0 exhausted; got retry=%d exhausted=%d", len(retry), len(exhausted))
	}
	if retry[0].State != model.ProbeTimedOut {
		t.Fatalf("expected TimedOut state, got %v", retry[0].State)
	}
}

func TestSweepExhaustsAtMaxAttempts(t *testing.T) {
	s := New(1)
	p := testProbe(443)
	p.Attempt = 1
	p.Deadline = time.Now().Add(-time.Second)
	s.Insert(p)

	retry, exhausted := s.Sweep(time.Now())
	if len(retry) != 0 || len(exhausted) != 1 {
		t.Fatalf("expected 0 retry, 1 exhausted; got retry=%d exhausted=%d", len(retry), len(exhausted))
	}
}

func TestCancelMarksQueuedAndInFlight(t *testing.T) {
	s := New(3)
	p := testProbe(22)
	s.Insert(p)
	s.Cancel()
	got, _ := s.Lookup(p.Key)
	if got.State != model.ProbeCancelled {
		t.Fatalf("expected Cancelled, got %v", got.State)
	}
}

func TestNextBackoffBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := NextBackoff(attempt)
		if d < 750*time.Millisecond || d > 10*time.Second {
			t.Fatalf("attempt %d backoff %v out of expected jittered bounds", attempt, d)
		}
	}
}
