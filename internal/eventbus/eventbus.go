// Package eventbus implements component C11: a bounded, drop-oldest
// publish-subscribe bus decoupling scanner state from observers (TUI,
// loggers, result store). Grounded in shape on the teacher's buffered-
// channel-per-consumer pattern used for the master push channel
// (handler/communication), generalized to multi-subscriber fan-out since
// the teacher has no internal pub/sub bus of its own.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"prtip/internal/core/events"
)

// FilterKind selects which events a subscriber receives.
type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterByScanID
	FilterByEventType
)

// Filter narrows a subscription.
type Filter struct {
	Kind    FilterKind
	ScanID  uuid.UUID
	Types   map[events.EventType]struct{}
}

func (f Filter) matches(e events.ScanEvent) bool {
	switch f.Kind {
	case FilterByScanID:
		return e.ScanID == f.ScanID
	case FilterByEventType:
		_, ok := f.Types[e.Type]
		return ok
	default:
		return true
	}
}

// Metrics tracks diagnostics the bus itself needs to report (a
// mutex-guarded counter, held only for the increment).
type Metrics struct {
	mu      sync.Mutex
	dropped int64
}

func (m *Metrics) incDropped() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

// Dropped returns the count of events dropped across all subscribers so far.
func (m *Metrics) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

type subscriber struct {
	filter Filter
	ch     chan events.ScanEvent
	mu     sync.Mutex
	closed bool
}

// Bus is the publish-subscribe hub. Zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	queueDepth  int
	metrics     Metrics
}

// New creates a Bus whose subscriber queues are bounded to queueDepth
// entries; once full, the oldest queued event is dropped to admit the new
// one. The producer is never blocked.
func New(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Bus{
		subscribers: make(map[int]*subscriber),
		queueDepth:  queueDepth,
	}
}

// Subscription is a handle returned by Subscribe; Receive drains events,
// Unsubscribe detaches and closes the channel.
type Subscription struct {
	id  int
	bus *Bus
	sub *subscriber
}

// Subscribe registers a new subscriber matching filter and returns a handle
// whose Events() channel delivers matching events.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	s := &subscriber{filter: filter, ch: make(chan events.ScanEvent, b.queueDepth)}
	b.subscribers[id] = s
	return &Subscription{id: id, bus: b, sub: s}
}

// Events returns the channel to range over for this subscription.
func (s *Subscription) Events() <-chan events.ScanEvent {
	return s.sub.ch
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscribers, s.id)
	s.bus.mu.Unlock()

	s.sub.mu.Lock()
	if !s.sub.closed {
		s.sub.closed = true
		close(s.sub.ch)
	}
	s.sub.mu.Unlock()
}

// Publish fans e out to every matching subscriber. A full subscriber queue
// drops its oldest entry (non-blocking) and increments the diagnostic
// counter; the producer never blocks on a slow consumer.
func (b *Bus) Publish(e events.ScanEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers {
		if !s.filter.matches(e) {
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		select {
		case s.ch <- e:
		default:
			// queue full: drop the oldest to make room, never block the publisher.
			select {
			case <-s.ch:
				b.metrics.incDropped()
			default:
			}
			select {
			case s.ch <- e:
			default:
				b.metrics.incDropped()
			}
		}
		s.mu.Unlock()
	}
}

// Metrics exposes the bus's diagnostic counters.
func (b *Bus) Metrics() *Metrics {
	return &b.metrics
}
