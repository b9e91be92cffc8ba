// Idle/zombie scan support. Field shapes grounded on
// original_source/crates/prtip-scanner/src/idle/idle_scanner.rs
// (IdleScanConfig/IdleScanResult), which in the original is itself a stub;
// the IPID-delta classification below follows Sanfilippo's technique as
// summarized in spec §6 ("Wire protocols").
package strategy

import (
	"net"
	"time"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

// ZombieCandidate is an idle host whose IPID sequence is predictable enough
// to relay an idle scan.
type ZombieCandidate struct {
	IP net.IP
}

// IdleScanConfig configures one idle-scan probe cycle against one target port.
type IdleScanConfig struct {
	Zombie              ZombieCandidate
	WaitTime            time.Duration
	Retries             int
	ConfidenceThreshold float32
}

// IdleScanResult is the classification for one (target, port) pair.
type IdleScanResult struct {
	Target     net.IP
	Port       uint16
	State      model.PortState
	Confidence float32
	IPIDDelta  uint16
}

// ClassifyIPIDDelta implements the idle-scan decision table (spec §4.7):
// Δ≥2 ⇒ Open, Δ=1 ⇒ Closed, Δ=0 ⇒ Filtered. Deltas are computed by the
// caller from two SYN/ACK probes to the zombie's IPID sequence, bracketing
// a spoofed SYN sent to the target in the zombie's name.
func ClassifyIPIDDelta(delta uint16) model.PortState {
	switch {
	case delta >= 2:
		return model.StateOpen
	case delta == 1:
		return model.StateClosed
	default:
		return model.StateFiltered
	}
}

// BuildZombieProbe builds the SYN/ACK probe sent directly to the zombie to
// sample its current IPID (the "before"/"after" measurement bracketing the
// spoofed probe).
func BuildZombieProbe(srcIP net.IP, zombie ZombieCandidate, srcPort uint16) (*RawProbe, error) {
	return buildRawTCP(srcIP, zombie.IP, srcPort, 80, codec.FlagSYN|codec.FlagACK, model.EvasionFlags{})
}

// BuildSpoofedSYN builds the SYN probe sent to the real target with the
// zombie's address forged into the IP source, so any SYN/ACK or RST from
// the target lands on the zombie rather than us — the zombie's own IPID
// response to that unsolicited packet is what produces the measurable delta.
func BuildSpoofedSYN(zombieIP, targetIP net.IP, targetPort uint16) (*RawProbe, error) {
	seg, err := codec.BuildTCP(codec.TCPParams{
		SrcIP:   zombieIP,
		DstIP:   targetIP,
		SrcPort: 31337,
		DstPort: targetPort,
		Seq:     0x1234,
		Flags:   codec.FlagSYN,
		Window:  65535,
	})
	if err != nil {
		return nil, err
	}
	packet, err := codec.BuildIPv4(codec.IPParams{Src: zombieIP, Dst: targetIP, Protocol: 6}, seg)
	if err != nil {
		return nil, err
	}
	return &RawProbe{Packet: packet}, nil
}
