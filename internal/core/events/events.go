// Package events defines the ScanEvent taxonomy published on the event bus
// (component C11). Grounded on prtip-core's events/mod.rs re-export list
// (DiscoveryMethod, MetricType, PauseReason, ScanStage, Throughput,
// ValidationError, WarningSeverity); per-field detail is supplied here since
// the concrete types.rs submodule was not part of the retrieved source.
package events

import (
	"time"

	"github.com/google/uuid"
	"prtip/internal/core/model"
)

// EventType tags one of the ~18 ScanEvent variants across five categories.
type EventType string

const (
	// Lifecycle (5)
	EventScanStarted   EventType = "scan_started"
	EventScanPaused    EventType = "scan_paused"
	EventScanResumed   EventType = "scan_resumed"
	EventScanCompleted EventType = "scan_completed"
	EventScanCancelled EventType = "scan_cancelled"

	// Discovery (3)
	EventHostDiscovered EventType = "host_discovered"
	EventPortFound      EventType = "port_found"
	EventProbeStarted   EventType = "probe_started"

	// Detection (4)
	EventServiceDetected    EventType = "service_detected"
	EventOSDetected         EventType = "os_detected"
	EventDetectionFailed    EventType = "detection_failed"
	EventFingerprintUpdated EventType = "fingerprint_updated"

	// Progress (2)
	EventProgressUpdate  EventType = "progress_update"
	EventThroughputSample EventType = "throughput_sample"

	// Diagnostic (4)
	EventPacketDropped   EventType = "packet_dropped"
	EventResourceSignal  EventType = "resource_signal"
	EventRetryScheduled  EventType = "retry_scheduled"
	EventWarning         EventType = "warning"
)

// DiscoveryMethod records how a host was found alive.
type DiscoveryMethod string

const (
	DiscoveryICMPEcho  DiscoveryMethod = "icmp_echo"
	DiscoveryTCPSYN    DiscoveryMethod = "tcp_syn"
	DiscoveryTCPACK    DiscoveryMethod = "tcp_ack"
	DiscoveryARP       DiscoveryMethod = "arp"
	DiscoveryAssumed   DiscoveryMethod = "assumed" // no ping, host assumed up
)

// MetricType distinguishes the kind of sample a ProgressUpdate/ThroughputSample carries.
type MetricType string

const (
	MetricPacketsPerSec MetricType = "packets_per_sec"
	MetricPortsPerSec   MetricType = "ports_per_sec"
	MetricETA           MetricType = "eta"
)

// PauseReason explains a ScanPaused event.
type PauseReason string

const (
	PauseOperator        PauseReason = "operator"
	PauseResourceCritical PauseReason = "resource_critical"
)

// ScanStage labels the pipeline stage a diagnostic or lifecycle event refers to.
type ScanStage string

const (
	StageDiscovery  ScanStage = "discovery"
	StagePortScan   ScanStage = "port_scan"
	StageService    ScanStage = "service_detect"
	StageOS         ScanStage = "os_fingerprint"
)

// WarningSeverity ranks a Warning event.
type WarningSeverity string

const (
	SeverityInfo WarningSeverity = "info"
	SeverityWarn WarningSeverity = "warn"
	SeverityHigh WarningSeverity = "high"
)

// Throughput is the payload of a ThroughputSample event.
type Throughput struct {
	PacketsPerSec float64
	PortsPerSec   float64
}

// ValidationError carries a config/parse failure surfaced as a diagnostic event.
type ValidationError struct {
	Field   string
	Message string
}

// ScanEvent is the common envelope; Payload holds variant-specific data.
// Fields common to all variants: ScanID and Timestamp (spec §3).
type ScanEvent struct {
	Type      EventType
	ScanID    uuid.UUID
	Timestamp time.Time
	Payload   interface{}
}

func New(t EventType, scanID uuid.UUID, payload interface{}) ScanEvent {
	return ScanEvent{Type: t, ScanID: scanID, Timestamp: time.Now(), Payload: payload}
}

// Payload types, one per variant family that carries data beyond the envelope.

type HostDiscoveredPayload struct {
	Target string
	Method DiscoveryMethod
}

type PortFoundPayload struct {
	Target string
	Port   uint16
	Proto  model.Protocol
	State  model.PortState
}

type ProbeStartedPayload struct {
	Target  string
	Port    uint16
	Variant model.ScanVariant
}

type ServiceDetectedPayload struct {
	Target  string
	Port    uint16
	Service model.ServiceInfo
}

type OSDetectedPayload struct {
	Target string
	OS     model.OSInfo
}

type DetectionFailedPayload struct {
	Target string
	Port   uint16
	Reason string
}

type FingerprintUpdatedPayload struct {
	DBPath string
	Count  int
}

type ProgressUpdatePayload struct {
	PercentComplete float64
	PacketsPerSec   float64
	PortsPerSec     float64
	ETA             time.Duration
	OpenPorts       int
}

type ThroughputSamplePayload struct {
	Throughput Throughput
}

type PacketDroppedPayload struct {
	Reason string
}

type ResourceSignalPayload struct {
	Signal string // Normal/Degraded/Critical, mirrors resource.Signal.String()
}

type RetryScheduledPayload struct {
	Target   string
	Port     uint16
	Attempt  int
	NextTry  time.Duration
}

type WarningPayload struct {
	Severity WarningSeverity
	Message  string
}
