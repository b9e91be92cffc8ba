package osfingerprint

import (
	"fmt"

	"prtip/internal/codec"
)

// matchReply finds the outbound probe a freshly received IP packet answers,
// by protocol and (for TCP/UDP) reversed port pair, or (for ICMP) echo
// id/seq — the portable equivalent of nmap_probes.go's matchProbe, built on
// internal/codec's panic-free parsers instead of that file's raw byte
// indexing.
func matchReply(packet []byte, probes []*outboundProbe) (*outboundProbe, *codec.TCPHeader, *codec.ICMPHeader, *codec.UDPHeader, bool, bool) {
	if len(packet) < 20 {
		return nil, nil, nil, nil, false, false
	}
	ihl := int(packet[0]&0x0F) * 4
	if ihl < 20 || len(packet) < ihl {
		return nil, nil, nil, nil, false, false
	}
	df := packet[6]&0x40 != 0
	proto := packet[9]
	payload := packet[ihl:]

	switch proto {
	case 6:
		th, err := codec.ParseTCP(payload)
		if err != nil {
			return nil, nil, nil, nil, false, false
		}
		for _, p := range probes {
			if p.Protocol == 6 && p.SrcPort == th.DstPort && p.DstPort == th.SrcPort {
				return p, th, nil, nil, df, false
			}
		}
		return nil, th, nil, nil, df, false
	case 1:
		ih, err := codec.ParseICMP(payload)
		if err != nil {
			return nil, nil, nil, nil, false, false
		}
		if ih.Type != codec.ICMPEchoReply {
			// Destination-unreachable/port-unreachable carrying the
			// original UDP probe's quoted IP header, used for U1.
			if ih.IsPortUnreachable() && len(ih.Payload) >= 20 {
				innerIHL := int(ih.Payload[0]&0x0F) * 4
				innerDF := ih.Payload[6]&0x40 != 0
				if len(ih.Payload) >= innerIHL+2 {
					for _, p := range probes {
						if p.Kind == kindU1 {
							return p, nil, ih, nil, innerDF, true
						}
					}
				}
			}
			return nil, nil, ih, nil, df, false
		}
		for _, p := range probes {
			if p.Kind == kindIE && p.ICMPID == ih.ID && p.ICMPSeq == ih.Seq {
				return p, nil, ih, nil, df, false
			}
		}
		return nil, nil, ih, nil, df, false
	case 17:
		uh, err := codec.ParseUDP(payload)
		if err != nil {
			return nil, nil, nil, nil, false, false
		}
		return nil, nil, nil, uh, df, false
	}
	return nil, nil, nil, nil, false, false
}

// flagLetter renders one TCP flag as Nmap's single-letter code: Z if unset.
func flagLetter(flags, bit int, set string) string {
	if flags&bit != 0 {
		return set
	}
	return "Z"
}

func tcpRuleBody(ttl uint8, df bool, th *codec.TCPHeader) string {
	dfc := "N"
	if df {
		dfc = "Y"
	}
	return fmt.Sprintf("R=Y%%DF=%s%%TG=%X%%W=%X%%S=%s%%A=%s%%F=%s",
		dfc, ttl, th.Window,
		flagLetter(th.Flags, codec.FlagSYN, "S"),
		flagLetter(th.Flags, codec.FlagACK, "A"),
		flagLetter(th.Flags, codec.FlagFIN, "F"))
}

// Collector accumulates classified reply rule-bodies for one target as raw
// IP packets arrive, keyed by the outboundProbe battery that produced them.
type Collector struct {
	probes []*outboundProbe
	rules  map[string]string
}

// NewCollector seeds a Collector with the probe battery whose replies it
// will classify; unseen tests default to "R=N" (no reply) when Finish is
// called.
func NewCollector(probes []*outboundProbe) *Collector {
	return &Collector{probes: probes, rules: make(map[string]string)}
}

// Observe classifies one received IP packet and, if it answers a probe in
// the battery, records (or upgrades) that test's rule body.
func (c *Collector) Observe(packet []byte, ttl uint8) {
	probe, th, ih, _, df, isU1Unreachable := matchReply(packet, c.probes)
	if probe == nil {
		return
	}
	name := kindTestName[probe.Kind]
	switch {
	case th != nil:
		c.rules[name] = tcpRuleBody(ttl, df, th)
	case ih != nil && probe.Kind == kindIE:
		dfi := "N"
		if df {
			dfi = "Y"
		}
		c.rules[name] = fmt.Sprintf("R=Y%%DFI=%s", dfi)
	case isU1Unreachable:
		dfc := "N"
		if df {
			dfc = "Y"
		}
		c.rules[name] = fmt.Sprintf("R=Y%%DF=%s", dfc)
	}
}

// Finish fills in "R=N" for every test the battery sent but never saw a
// reply for, and returns the completed per-test rule-body map ready for
// DB.Match.
func (c *Collector) Finish() map[string]string {
	for _, p := range c.probes {
		name := kindTestName[p.Kind]
		if _, ok := c.rules[name]; !ok {
			c.rules[name] = "R=N"
		}
	}
	return c.rules
}

// ttlFromPacket extracts the received IP header's TTL byte; callers that
// already parsed the IP header for other reasons can skip the re-parse by
// reading packet[8] directly, but this helper keeps Observe's caller simple.
func ttlFromPacket(packet []byte) uint8 {
	if len(packet) < 9 {
		return 0
	}
	return packet[8]
}
