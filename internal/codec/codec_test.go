package codec

import (
	"bytes"
	"net"
	"testing"
)

func TestBuildParseTCPRoundTrip(t *testing.T) {
	seg, err := BuildTCP(TCPParams{
		SrcIP:   net.ParseIP("127.0.0.1"),
		DstIP:   net.ParseIP("127.0.0.1"),
		SrcPort: 40000,
		DstPort: 80,
		Seq:     1000,
		Ack:     0,
		Flags:   FlagSYN,
		Window:  65535,
	})
	if err != nil {
		t.Fatalf("BuildTCP: %v", err)
	}
	h, err := ParseTCP(seg)
	if err != nil {
		t.Fatalf("ParseTCP: %v", err)
	}
	if h.SrcPort != 40000 || h.DstPort != 80 || !h.HasFlag(FlagSYN) {
		t.Fatalf("unexpected parsed header: %+v", h)
	}
}

func TestParseTCPNeverPanics(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0x00},
		make([]byte, 19),
		make([]byte, 20),
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for i, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("input %d panicked: %v", i, r)
				}
			}()
			_, _ = ParseTCP(in)
		}()
	}
}

func TestUDPChecksumNeverZero(t *testing.T) {
	seg, err := BuildUDP(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 1234, 53, nil)
	if err != nil {
		t.Fatalf("BuildUDP: %v", err)
	}
	h, err := ParseUDP(seg)
	if err != nil {
		t.Fatalf("ParseUDP: %v", err)
	}
	if h.Checksum == 0 {
		t.Fatal("udp checksum must never be transmitted as literal zero")
	}
}

func TestFragmentReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 64)
	udp, err := BuildUDP(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 12345, 53, payload)
	if err != nil {
		t.Fatalf("BuildUDP: %v", err)
	}
	packet, err := BuildIPv4(IPParams{Src: net.ParseIP("10.0.0.1"), Dst: net.ParseIP("10.0.0.2"), Protocol: 17, ID: 42}, udp)
	if err != nil {
		t.Fatalf("BuildIPv4: %v", err)
	}

	frags, err := Fragment(packet, DefaultFragmentMTU)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}

	reassembled, err := Reassemble(frags)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if !bytes.Equal(packet, reassembled) {
		t.Fatalf("round trip mismatch:\norig=%x\ngot =%x", packet, reassembled)
	}
}

func TestGenerateDecoysUnique(t *testing.T) {
	real := net.ParseIP("192.168.1.1")
	decoys := []net.IP{
		net.ParseIP("1.2.3.4"),
		net.ParseIP("5.6.7.8"),
		net.ParseIP("1.2.3.4"), // duplicate, must be deduped
	}
	list, realIdx, err := GenerateDecoys(real, decoys, 0, false, nil)
	if err != nil {
		t.Fatalf("GenerateDecoys: %v", err)
	}
	seen := map[string]int{}
	for _, ip := range list {
		seen[ip.String()]++
	}
	for ip, n := range seen {
		if n != 1 {
			t.Fatalf("address %s appears %d times, want 1", ip, n)
		}
	}
	if !list[realIdx].Equal(real) {
		t.Fatalf("real source not at reported index %d", realIdx)
	}
}
