package osfingerprint

import (
	"net"
	"time"

	"prtip/internal/codec"
)

// probeKind tags each outgoing probe so replies can be routed back to the
// right test name without depending on the scheduler's ProbeStore/Correlator,
// whose single (protocol, port) keying does not fit a battery that spans
// TCP, ICMP and UDP against two different destination ports at once.
type probeKind int

const (
	kindSEQ probeKind = iota
	kindECN
	kindT2
	kindT3
	kindT4
	kindT5
	kindT6
	kindT7
	kindIE
	kindU1
)

var kindTestName = map[probeKind]string{
	kindSEQ: "SEQ",
	kindECN: "ECN",
	kindT2:  "T2",
	kindT3:  "T3",
	kindT4:  "T4",
	kindT5:  "T5",
	kindT6:  "T6",
	kindT7:  "T7",
	kindIE:  "IE",
	kindU1:  "U1",
}

// outboundProbe is one packet of the battery plus enough of its own
// parameters to recognize a matching reply.
type outboundProbe struct {
	Kind     probeKind
	Protocol int // capture.ProtoTCP / ProtoUDP / ProtoICMP
	Packet   []byte
	SrcPort  uint16 // TCP/UDP
	DstPort  uint16 // TCP/UDP
	ICMPID   uint16
	ICMPSeq  uint16
}

// tcpOptSet builds the options used by the teacher's "simplified SEQ/T2-T7"
// probes in nmap_probes.go: window scale, MSS, timestamp and SACK-permitted,
// the combination Nmap itself uses for its first SEQ probe.
func tcpOptSet() []codec.TCPOption {
	return []codec.TCPOption{
		{Kind: codec.OptWScale, Data: []byte{10}},
		{Kind: codec.OptMSS, Data: []byte{0x05, 0xB4}}, // 1460
		{Kind: codec.OptTimestamp, Data: make([]byte, 8)},
		{Kind: codec.OptSACKPermit},
	}
}

// BuildBattery constructs the full probe set against one open and one
// closed port, grounded on nmap_probes.go's buildAllProbes: a SEQ-style SYN,
// an ECN-flagged SYN, three flag variations against the open port (T2-T4),
// three against the closed port (T5-T7), an ICMP echo (IE), and a
// large-payload UDP probe at the closed port (U1): ten probes in all.
func BuildBattery(srcIP, dstIP net.IP, openPort, closedPort uint16) ([]*outboundProbe, error) {
	base := uint16(40000 + time.Now().Nanosecond()%10000)
	opts := tcpOptSet()

	mk := func(kind probeKind, srcPort, dstPort uint16, flags int) (*outboundProbe, error) {
		seg, err := codec.BuildTCP(codec.TCPParams{
			SrcIP: srcIP, DstIP: dstIP, SrcPort: srcPort, DstPort: dstPort,
			Seq: uint32(time.Now().UnixNano()), Flags: flags, Window: 1024, Options: opts,
		})
		if err != nil {
			return nil, err
		}
		pkt, err := codec.BuildIPv4(codec.IPParams{Src: srcIP, Dst: dstIP, Protocol: 6, DontFrag: true}, seg)
		if err != nil {
			return nil, err
		}
		return &outboundProbe{Kind: kind, Protocol: 6, Packet: pkt, SrcPort: srcPort, DstPort: dstPort}, nil
	}

	var probes []*outboundProbe
	steps := []struct {
		kind  probeKind
		off   uint16
		dst   uint16
		flags int
	}{
		{kindSEQ, 1, openPort, codec.FlagSYN},
		{kindECN, 2, openPort, codec.FlagSYN | codec.FlagECE | codec.FlagCWR},
		{kindT2, 3, openPort, 0},
		{kindT3, 4, openPort, codec.FlagSYN | codec.FlagFIN | codec.FlagURG | codec.FlagPSH},
		{kindT4, 5, openPort, codec.FlagACK},
		{kindT5, 6, closedPort, codec.FlagSYN},
		{kindT6, 7, closedPort, codec.FlagACK},
		{kindT7, 8, closedPort, codec.FlagFIN | codec.FlagPSH | codec.FlagURG},
	}
	for _, s := range steps {
		p, err := mk(s.kind, base+s.off, s.dst, s.flags)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}

	icmpID := base + 20
	icmpPayload := make([]byte, 120)
	icmpSeg, err := codec.BuildICMPEcho(icmpID, 1, icmpPayload)
	if err != nil {
		return nil, err
	}
	icmpPkt, err := codec.BuildIPv4(codec.IPParams{Src: srcIP, Dst: dstIP, Protocol: 1}, icmpSeg)
	if err != nil {
		return nil, err
	}
	probes = append(probes, &outboundProbe{Kind: kindIE, Protocol: 1, Packet: icmpPkt, ICMPID: icmpID, ICMPSeq: 1})

	udpPort := base + 21
	udpPayload := make([]byte, 300)
	for i := range udpPayload {
		udpPayload[i] = 'C'
	}
	udpSeg, err := codec.BuildUDP(srcIP, dstIP, udpPort, closedPort, udpPayload)
	if err != nil {
		return nil, err
	}
	udpPkt, err := codec.BuildIPv4(codec.IPParams{Src: srcIP, Dst: dstIP, Protocol: 17}, udpSeg)
	if err != nil {
		return nil, err
	}
	probes = append(probes, &outboundProbe{Kind: kindU1, Protocol: 17, Packet: udpPkt, SrcPort: udpPort, DstPort: closedPort})

	return probes, nil
}
