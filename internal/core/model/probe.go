package model

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Protocol is the wire protocol a probe rides on.
type Protocol string

const (
	ProtoTCP  Protocol = "tcp"
	ProtoUDP  Protocol = "udp"
	ProtoICMP Protocol = "icmp"
)

// ScanVariant enumerates the scan strategies of component C8. Variants are
// closed and enumerable by design (spec §9): model as a tagged value, never
// an inheritance tree.
type ScanVariant string

const (
	VariantConnect ScanVariant = "connect"
	VariantSYN     ScanVariant = "syn"
	VariantFIN     ScanVariant = "fin"
	VariantNULL    ScanVariant = "null"
	VariantXmas    ScanVariant = "xmas"
	VariantACK     ScanVariant = "ack"
	VariantUDP     ScanVariant = "udp"
	VariantIdle    ScanVariant = "idle"
	VariantDecoy   ScanVariant = "decoy"
)

// ProbeState is the probe lifecycle. Exactly one holds at steady state
// (testable property #1).
type ProbeState string

const (
	ProbeQueued    ProbeState = "queued"
	ProbeInFlight  ProbeState = "in_flight"
	ProbeResponded ProbeState = "responded"
	ProbeTimedOut  ProbeState = "timed_out"
	ProbeCancelled ProbeState = "cancelled"
)

// ProbeKey is the minimum tuple used to look up a probe from an inbound
// packet. Shape depends on protocol: TCP keys on the four-tuple plus the
// expected ack; UDP drops the ack; ICMP echo keys on (identifier, sequence)
// with RemoteIP carrying the echo source for disambiguation.
type ProbeKey struct {
	Protocol    Protocol
	LocalPort   uint16
	RemoteIP    string
	RemotePort  uint16
	ExpectedAck uint32 // TCP only
	Identifier  uint16 // ICMP only
	Sequence    uint16 // ICMP only
}

func (k ProbeKey) String() string {
	switch k.Protocol {
	case ProtoICMP:
		return fmt.Sprintf("icmp:%s:id=%d:seq=%d", k.RemoteIP, k.Identifier, k.Sequence)
	case ProtoUDP:
		return fmt.Sprintf("udp:%d:%s:%d", k.LocalPort, k.RemoteIP, k.RemotePort)
	default:
		return fmt.Sprintf("tcp:%d:%s:%d:ack=%d", k.LocalPort, k.RemoteIP, k.RemotePort, k.ExpectedAck)
	}
}

// Probe is the atomic unit of work: created by the Scheduler, mutated only
// by the Correlator or the timeout sweeper, destroyed when terminal.
type Probe struct {
	ScanID  uuid.UUID
	Target  net.IP
	Port    uint16
	Proto   Protocol
	Variant ScanVariant

	Key ProbeKey

	Attempt   int
	SentAt    time.Time
	Deadline  time.Time
	State     ProbeState
	EvasionFlags EvasionFlags
}

// EvasionFlags compose without conflict (spec §4.7): they're applied at
// codec time regardless of which combination the operator selects.
type EvasionFlags struct {
	Fragment     bool
	FragmentMTU  int
	BadChecksum  bool
	CustomTTL    int // 0 = OS default
	SourcePort   uint16
	Decoys       []net.IP
	RealSrcIndex int // position of the real source within Decoys
}

// NewProbe constructs a Queued probe with a deadline computed from the
// supplied timeout.
func NewProbe(scanID uuid.UUID, target net.IP, port uint16, proto Protocol, variant ScanVariant, timeout time.Duration) *Probe {
	now := time.Now()
	return &Probe{
		ScanID:   scanID,
		Target:   target,
		Port:     port,
		Proto:    proto,
		Variant:  variant,
		Attempt:  1,
		SentAt:   now,
		Deadline: now.Add(timeout),
		State:    ProbeQueued,
	}
}
