package strategy

import (
	"net"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

// BuildUDP builds a UDP probe. When a protocol-specific payload is known
// for the target port (e.g. a DNS query for 53), callers should pass it;
// an empty payload is a valid probe for protocols with no well-known
// request shape (spec §4.7's UDP row).
func BuildUDP(srcIP, dstIP net.IP, dstPort uint16, payload []byte, evasion model.EvasionFlags) (*RawProbe, error) {
	srcPort := srcPortFor(evasion)
	seg, err := codec.BuildUDP(srcIP, dstIP, srcPort, dstPort, payload)
	if err != nil {
		return nil, err
	}
	ipParams := applyEvasion(codec.IPParams{Src: srcIP, Dst: dstIP, Protocol: 17}, evasion)
	packet, err := codec.BuildIPv4(ipParams, seg)
	if err != nil {
		return nil, err
	}
	return &RawProbe{
		Packet: packet,
		Key: model.ProbeKey{
			Protocol:   model.ProtoUDP,
			LocalPort:  srcPort,
			RemoteIP:   dstIP.String(),
			RemotePort: dstPort,
		},
	}, nil
}

// InterpretUDP classifies the reply: a UDP reply ⇒ Open; ICMP
// port-unreachable ⇒ Closed; other ICMP ⇒ Filtered; nothing ⇒ OpenFiltered.
func InterpretUDP(gotUDPReply, gotICMP, icmpPortUnreachable bool) model.PortState {
	if gotUDPReply {
		return model.StateOpen
	}
	if gotICMP {
		if icmpPortUnreachable {
			return model.StateClosed
		}
		return model.StateFiltered
	}
	return model.StateOpenFiltered
}

// WellKnownUDPPayload returns a protocol-specific probe payload for ports
// where sending nothing would almost never elicit a reply (UDP scanning's
// classic blind spot). Returns nil for ports with no known payload.
func WellKnownUDPPayload(port uint16) []byte {
	switch port {
	case 53: // DNS: minimal standard query for root NS
		return []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01}
	case 161: // SNMP: GetRequest for sysDescr with community "public" is built by snmpdetect; a bare trigger byte suffices here
		return []byte{0x30, 0x00}
	case 123: // NTP: client mode 3 request
		ntp := make([]byte, 48)
		ntp[0] = 0x1B
		return ntp
	default:
		return nil
	}
}
