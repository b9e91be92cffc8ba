package codec

import (
	"encoding/binary"
	"fmt"
	"net"
)

// BuildUDP constructs a UDP datagram with a pseudo-header checksum. Per
// RFC 768, a transmitted checksum of zero means "no checksum", so a computed
// checksum of zero is transmitted as all-ones (0xFFFF) instead — mirrors
// packet_builder.go's BuildUDPHeader special case.
func BuildUDP(srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	length := 8 + len(payload)
	h := make([]byte, 8)
	binary.BigEndian.PutUint16(h[0:], srcPort)
	binary.BigEndian.PutUint16(h[2:], dstPort)
	binary.BigEndian.PutUint16(h[4:], uint16(length))

	ph := pseudoHeader(srcIP, dstIP, 17, length)
	buf := make([]byte, 0, len(ph)+length)
	buf = append(buf, ph...)
	buf = append(buf, h...)
	buf = append(buf, payload...)

	cs := Checksum(buf)
	if cs == 0 {
		cs = 0xFFFF
	}
	binary.BigEndian.PutUint16(h[6:], cs)
	return append(h, payload...), nil
}

// UDPHeader is the parsed form of a UDP datagram.
type UDPHeader struct {
	SrcPort, DstPort uint16
	Length           uint16
	Checksum         uint16
	Payload          []byte
}

// ParseUDP parses raw bytes into a UDPHeader without panicking on malformed input.
func ParseUDP(b []byte) (*UDPHeader, error) {
	if len(b) < 8 {
		return nil, ErrMalformedHeader
	}
	h := &UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(b[0:2]),
		DstPort:  binary.BigEndian.Uint16(b[2:4]),
		Length:   binary.BigEndian.Uint16(b[4:6]),
		Checksum: binary.BigEndian.Uint16(b[6:8]),
	}
	h.Payload = append([]byte(nil), b[8:]...)
	return h, nil
}

// ICMP types used by the scanning core.
const (
	ICMPEchoRequest       = 8
	ICMPEchoReply         = 0
	ICMPDestUnreachable   = 3
	ICMPTimeExceeded      = 11
	CodePortUnreachable   = 3
)

// BuildICMPEcho constructs an ICMPv4 echo request.
func BuildICMPEcho(id, seq uint16, payload []byte) ([]byte, error) {
	h := make([]byte, 8)
	h[0] = ICMPEchoRequest
	h[1] = 0
	binary.BigEndian.PutUint16(h[4:], id)
	binary.BigEndian.PutUint16(h[6:], seq)

	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, h...)
	buf = append(buf, payload...)
	cs := Checksum(buf)
	binary.BigEndian.PutUint16(h[2:], cs)
	return append(h, payload...), nil
}

// ICMPHeader is the parsed form of an ICMP message.
type ICMPHeader struct {
	Type, Code uint8
	Checksum   uint16
	ID, Seq    uint16 // meaningful for Echo Request/Reply only
	Payload    []byte
}

// ParseICMP parses raw bytes into an ICMPHeader without panicking on malformed input.
func ParseICMP(b []byte) (*ICMPHeader, error) {
	if len(b) < 8 {
		return nil, ErrMalformedHeader
	}
	h := &ICMPHeader{
		Type:     b[0],
		Code:     b[1],
		Checksum: binary.BigEndian.Uint16(b[2:4]),
	}
	if h.Type == ICMPEchoRequest || h.Type == ICMPEchoReply {
		h.ID = binary.BigEndian.Uint16(b[4:6])
		h.Seq = binary.BigEndian.Uint16(b[6:8])
	}
	h.Payload = append([]byte(nil), b[8:]...)
	return h, nil
}

// IsPortUnreachable reports whether this ICMP message is a
// destination-unreachable/port-unreachable notification, the UDP-scan
// "Closed" signal (spec §4.7).
func (h *ICMPHeader) IsPortUnreachable() bool {
	return h.Type == ICMPDestUnreachable && h.Code == CodePortUnreachable
}

var errUnsupportedFamily = fmt.Errorf("unsupported address family for packet build")
