// Package codec implements component C1: building and parsing TCP/UDP/ICMP
// headers over IPv4/IPv6, including options, checksums, fragmentation, and
// decoy generation. Grounded on
// internal/core/lib/network/netraw/packet_builder.go's manual header-byte
// construction and golang.org/x/net/ipv4 for IPv4 header marshaling;
// generalized with IPv6 support and a total (panic-free) parser, which the
// teacher file does not provide (it has no parse side at all).
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// TCP flag bits (NS is the 9th bit, carried separately in some layouts;
// here flags is a 9-bit value with NS at bit 8, matching the teacher's
// convention in packet_builder.go).
const (
	FlagFIN = 0x01
	FlagSYN = 0x02
	FlagRST = 0x04
	FlagPSH = 0x08
	FlagACK = 0x10
	FlagURG = 0x20
	FlagECE = 0x40
	FlagCWR = 0x80
	FlagNS  = 0x100
)

// TCP option kinds.
const (
	OptEOL        = 0
	OptNOP        = 1
	OptMSS        = 2
	OptWScale     = 3
	OptSACKPermit = 4
	OptSACK       = 5
	OptTimestamp  = 8
)

// TCPOption is a single TCP option (kind/length/data), RFC 793/7323 style.
type TCPOption struct {
	Kind uint8
	Data []byte
}

// TCPParams is the full set of inputs to build a TCP segment.
type TCPParams struct {
	SrcIP, DstIP     net.IP
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	Flags            int
	Window           uint16
	UrgentPtr        uint16
	Options          []TCPOption
	Payload          []byte
	BadChecksum      bool
}

// BuildTCP constructs a TCP segment (header + options + payload) with a
// checksum computed over the IPv4 or IPv6 pseudo-header unless BadChecksum is set,
// in which case an intentionally wrong checksum is written (the --badsum
// evasion flag, spec §4.7). Options are padded to a 4-byte multiple; total
// header length (including options) must not exceed 60 bytes (data offset
// encodes a 4-bit count of 4-byte words), giving ≤40 bytes of options.
func BuildTCP(p TCPParams) ([]byte, error) {
	var optBuf bytes.Buffer
	for _, opt := range p.Options {
		optBuf.WriteByte(opt.Kind)
		if opt.Kind == OptNOP || opt.Kind == OptEOL {
			continue
		}
		optBuf.WriteByte(byte(len(opt.Data) + 2))
		optBuf.Write(opt.Data)
	}
	padLen := (4 - (optBuf.Len() % 4)) % 4
	for i := 0; i < padLen; i++ {
		optBuf.WriteByte(OptNOP)
	}
	optData := optBuf.Bytes()
	if len(optData) > 40 {
		return nil, fmt.Errorf("tcp options too large: %d bytes (max 40)", len(optData))
	}

	headerLen := 20 + len(optData)
	dataOffset := headerLen / 4

	h := make([]byte, headerLen)
	binary.BigEndian.PutUint16(h[0:], p.SrcPort)
	binary.BigEndian.PutUint16(h[2:], p.DstPort)
	binary.BigEndian.PutUint32(h[4:], p.Seq)
	binary.BigEndian.PutUint32(h[8:], p.Ack)
	h[12] = byte((dataOffset << 4) | ((p.Flags >> 8) & 0x01))
	h[13] = byte(p.Flags & 0xFF)
	binary.BigEndian.PutUint16(h[14:], p.Window)
	binary.BigEndian.PutUint16(h[18:], p.UrgentPtr)
	copy(h[20:], optData)

	segment := append(h, p.Payload...)

	if p.BadChecksum {
		binary.BigEndian.PutUint16(segment[16:], 0xDEAD)
		return segment, nil
	}

	cs := tcpChecksum(p.SrcIP, p.DstIP, segment)
	binary.BigEndian.PutUint16(segment[16:], cs)
	return segment, nil
}

func tcpChecksum(srcIP, dstIP net.IP, segment []byte) uint16 {
	ph := pseudoHeader(srcIP, dstIP, 6, len(segment))
	buf := make([]byte, 0, len(ph)+len(segment))
	buf = append(buf, ph...)
	buf = append(buf, segment...)
	return Checksum(buf)
}

func pseudoHeader(srcIP, dstIP net.IP, proto byte, length int) []byte {
	if v4 := srcIP.To4(); v4 != nil {
		ph := make([]byte, 12)
		copy(ph[0:4], v4)
		copy(ph[4:8], dstIP.To4())
		ph[8] = 0
		ph[9] = proto
		binary.BigEndian.PutUint16(ph[10:], uint16(length))
		return ph
	}
	ph := make([]byte, 40)
	copy(ph[0:16], srcIP.To16())
	copy(ph[16:32], dstIP.To16())
	binary.BigEndian.PutUint32(ph[32:], uint32(length))
	ph[39] = proto
	return ph
}

// Checksum computes the 16-bit one's-complement Internet checksum (RFC 1071).
func Checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	i := 0
	for n > 1 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
		i += 2
		n -= 2
	}
	if n > 0 {
		sum += uint32(data[i]) << 8
	}
	for sum>>16 > 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// TCPHeader is the parsed, field-accessible form of a TCP segment.
type TCPHeader struct {
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	DataOffset       int
	Flags            int
	Window           uint16
	Checksum         uint16
	UrgentPtr        uint16
	Options          []byte
	Payload          []byte
}

// ErrMalformedHeader is returned by ParseTCP for structurally invalid input.
var ErrMalformedHeader = fmt.Errorf("malformed tcp header")

// ParseTCP parses raw bytes into a TCPHeader. It never panics regardless of
// input length or content (testable property #4): truncated or adversarial
// input yields ErrMalformedHeader instead of an out-of-bounds access.
func ParseTCP(b []byte) (*TCPHeader, error) {
	if len(b) < 20 {
		return nil, ErrMalformedHeader
	}
	dataOffset := int(b[12]>>4) * 4
	if dataOffset < 20 || dataOffset > len(b) {
		return nil, ErrMalformedHeader
	}
	flags := (int(b[12]&0x01) << 8) | int(b[13])
	h := &TCPHeader{
		SrcPort:    binary.BigEndian.Uint16(b[0:2]),
		DstPort:    binary.BigEndian.Uint16(b[2:4]),
		Seq:        binary.BigEndian.Uint32(b[4:8]),
		Ack:        binary.BigEndian.Uint32(b[8:12]),
		DataOffset: dataOffset,
		Flags:      flags,
		Window:     binary.BigEndian.Uint16(b[14:16]),
		Checksum:   binary.BigEndian.Uint16(b[16:18]),
		UrgentPtr:  binary.BigEndian.Uint16(b[18:20]),
	}
	h.Options = append([]byte(nil), b[20:dataOffset]...)
	h.Payload = append([]byte(nil), b[dataOffset:]...)
	return h, nil
}

// HasFlag reports whether all bits of flag are set.
func (h *TCPHeader) HasFlag(flag int) bool {
	return h.Flags&flag == flag
}
