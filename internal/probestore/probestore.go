// Package probestore implements component C5: a concurrent map from
// ProbeKey to ProbeRecord with insertion-before-emission and a bounded
// timeout sweeper. New code — the teacher scans synchronously per-port and
// has no async in-flight table — but the sharded-map-with-per-shard-lock
// pattern follows the mutex-guarded-map idiom used throughout
// internal/core/scanner/* and the atomic/CAS accounting style of
// internal/core/lib/network/qos/limiter.go.
package probestore

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"prtip/internal/core/model"
)

const shardCount = 32

type shard struct {
	mu   sync.Mutex
	data map[model.ProbeKey]*model.Probe
}

// Store is a sharded concurrent probe table.
type Store struct {
	shards [shardCount]*shard

	mu      sync.Mutex
	maxAttempts int
}

// New creates a Store. maxAttempts bounds the TimedOut→Queued retry policy.
func New(maxAttempts int) *Store {
	s := &Store{maxAttempts: maxAttempts}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[model.ProbeKey]*model.Probe)}
	}
	return s
}

func (s *Store) shardFor(k model.ProbeKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.String()))
	return s.shards[h.Sum32()%shardCount]
}

// Insert registers a probe before emission (Queued→InFlight transition is
// the caller's responsibility once the packet is actually on the wire).
func (s *Store) Insert(p *model.Probe) {
	sh := s.shardFor(p.Key)
	sh.mu.Lock()
	sh.data[p.Key] = p
	sh.mu.Unlock()
}

// Lookup finds the probe for an inbound packet's reconstructed key.
func (s *Store) Lookup(k model.ProbeKey) (*model.Probe, bool) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	p, ok := sh.data[k]
	return p, ok
}

// Remove deletes a probe once it reaches a terminal state and has been
// handed to the result sink (Lifecycle note in spec §3: results are no
// longer owned by the scanner once finalized).
func (s *Store) Remove(k model.ProbeKey) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	delete(sh.data, k)
	sh.mu.Unlock()
}

// Transition applies a state change to an existing probe if present,
// returning false if the key was not found (e.g. a race with the sweeper).
func (s *Store) Transition(k model.ProbeKey, newState model.ProbeState) bool {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	p, ok := sh.data[k]
	if !ok {
		return false
	}
	p.State = newState
	return true
}

// Sweep scans all shards for InFlight probes past their deadline,
// transitions them to TimedOut, and returns the list of probes that should
// be re-queued per the retry policy (exponential backoff: base 1s, factor
// 2.0, cap 8s, jitter ±25%; spec §4.5). Probes at maxAttempts are left
// TimedOut terminally and returned separately for result finalization.
func (s *Store) Sweep(now time.Time) (retry []*model.Probe, exhausted []*model.Probe) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, p := range sh.data {
			if p.State != model.ProbeInFlight || now.Before(p.Deadline) {
				continue
			}
			p.State = model.ProbeTimedOut
			if p.Attempt < s.maxAttempts {
				retry = append(retry, p)
			} else {
				exhausted = append(exhausted, p)
			}
		}
		sh.mu.Unlock()
	}
	return retry, exhausted
}

// NextBackoff computes the re-queue deadline for a retried probe: base 1s,
// factor 2.0, cap 8s, jitter ±25% (spec §4.5).
func NextBackoff(attempt int) time.Duration {
	base := time.Second
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 8*time.Second {
			backoff = 8 * time.Second
			break
		}
	}
	jitterFactor := 0.75 + rand.Float64()*0.5 // ±25%
	return time.Duration(float64(backoff) * jitterFactor)
}

// Cancel transitions every tracked probe to Cancelled, used on scan-level
// cancellation (spec §5).
func (s *Store) Cancel() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, p := range sh.data {
			if p.State == model.ProbeQueued || p.State == model.ProbeInFlight {
				p.State = model.ProbeCancelled
			}
		}
		sh.mu.Unlock()
	}
}

// Len reports the total tracked probe count across all shards (diagnostics/tests).
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.data)
		sh.mu.Unlock()
	}
	return n
}
