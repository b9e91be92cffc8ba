package codec

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"

	"golang.org/x/net/ipv4"
)

// IPParams controls the outer IP header wrapped around an already-built
// transport segment.
type IPParams struct {
	Src, Dst net.IP
	Protocol int
	TTL      int // 0 = OS default (64)
	ID       int // 0 = random
	DontFrag bool
}

// BuildIPv4 wraps payload (a pre-built TCP/UDP/ICMP segment) in an IPv4
// header, grounded on packet_builder.go's BuildIPv4Packet which itself
// delegates to golang.org/x/net/ipv4's Header.Marshal.
func BuildIPv4(p IPParams, payload []byte) ([]byte, error) {
	ttl := p.TTL
	if ttl == 0 {
		ttl = 64
	}
	id := p.ID
	if id == 0 {
		id = rand.Intn(65535) + 1
	}
	var flags ipv4.HeaderFlags
	if p.DontFrag {
		flags = ipv4.DontFragment
	}
	header := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(payload),
		ID:       id,
		Flags:    flags,
		TTL:      ttl,
		Protocol: p.Protocol,
		Src:      p.Src,
		Dst:      p.Dst,
	}
	h, err := header.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal ipv4 header: %w", err)
	}
	binary.BigEndian.PutUint16(h[10:12], Checksum(h))
	return append(h, payload...), nil
}

// IPv6Params controls an IPv6 header.
type IPv6Params struct {
	Src, Dst   net.IP
	NextHeader int
	HopLimit   int // 0 = OS default (64)
}

// BuildIPv6 constructs a minimal (no extension headers) IPv6 header. The
// teacher's netraw package has no IPv6 path; this is built directly against
// RFC 8200's fixed 40-byte header since x/net/ipv6 does not expose a
// marshal helper symmetric to ipv4.Header.
func BuildIPv6(p IPv6Params, payload []byte) ([]byte, error) {
	hopLimit := p.HopLimit
	if hopLimit == 0 {
		hopLimit = 64
	}
	h := make([]byte, 40)
	h[0] = 0x60 // version 6, traffic class/flow label = 0
	binary.BigEndian.PutUint16(h[4:], uint16(len(payload)))
	h[6] = byte(p.NextHeader)
	h[7] = byte(hopLimit)
	src16 := p.Src.To16()
	dst16 := p.Dst.To16()
	if src16 == nil || dst16 == nil {
		return nil, errUnsupportedFamily
	}
	copy(h[8:24], src16)
	copy(h[24:40], dst16)
	return append(h, payload...), nil
}
