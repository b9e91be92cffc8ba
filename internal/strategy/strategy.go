// Package strategy implements component C8: one routine per scan variant
// that produces probes and interprets replies. Variants are a closed,
// enumerable set (spec §9) — modeled as plain functions, one file per
// family, which the scheduler selects with a switch on the variant, rather
// than an inheritance tree. Grounded in concurrency/packet
// shape on internal/core/scanner/alive/tcp_syn_linux.go (platform-guard
// convention) and internal/core/lib/network/netraw/packet_builder.go (raw
// packet construction, reused via internal/codec); idle-scan field shapes
// come from original_source/crates/prtip-scanner/src/idle/idle_scanner.rs.
package strategy

import (
	"net"
	"time"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

// RawProbe is what a raw-packet strategy hands back to the scheduler: the
// fully built wire packet (IP header + transport segment, ready for
// capture.Send) plus the ProbeKey the correlator will later reconstruct
// from the reply.
type RawProbe struct {
	Packet []byte
	Key    model.ProbeKey
}

// Interpretation classifies an observed reply (or its absence) into a
// PortState, per the table in spec §4.7.
type Interpretation func(gotReply bool, tcpFlags int, icmpUnreachable bool) model.PortState

// srcPortFor picks the local source port for a raw probe: the operator's
// --source-port override, or a random ephemeral port otherwise (spec §6's
// -g flag).
func srcPortFor(evasion model.EvasionFlags) uint16 {
	if evasion.SourcePort != 0 {
		return evasion.SourcePort
	}
	return uint16(30000 + time.Now().Nanosecond()%30000)
}

func applyEvasion(ipParams codec.IPParams, evasion model.EvasionFlags) codec.IPParams {
	if evasion.CustomTTL != 0 {
		ipParams.TTL = evasion.CustomTTL
	}
	return ipParams
}

func buildRawTCP(srcIP, dstIP net.IP, srcPort, dstPort uint16, flags int, evasion model.EvasionFlags) (*RawProbe, error) {
	seq := uint32(time.Now().UnixNano())
	seg, err := codec.BuildTCP(codec.TCPParams{
		SrcIP:       srcIP,
		DstIP:       dstIP,
		SrcPort:     srcPort,
		DstPort:     dstPort,
		Seq:         seq,
		Flags:       flags,
		Window:      65535,
		BadChecksum: evasion.BadChecksum,
	})
	if err != nil {
		return nil, err
	}
	ipParams := applyEvasion(codec.IPParams{Src: srcIP, Dst: dstIP, Protocol: 6}, evasion)
	packet, err := codec.BuildIPv4(ipParams, seg)
	if err != nil {
		return nil, err
	}
	key := model.ProbeKey{
		Protocol:   model.ProtoTCP,
		LocalPort:  srcPort,
		RemoteIP:   dstIP.String(),
		RemotePort: dstPort,
	}
	if flags&codec.FlagSYN != 0 {
		key.ExpectedAck = seq + 1
	}
	return &RawProbe{Packet: packet, Key: key}, nil
}
