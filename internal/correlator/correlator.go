// Package correlator implements component C6: mapping inbound packets to
// in-flight probes via per-protocol key reconstruction, driving the probe
// state machine. New code, grounded in shape on the channel-draining
// goroutine pattern used by internal/core/scanner/port/scanner.go's worker
// pool and on prtip-core's ProbeKey contract (spec §3).
package correlator

import (
	"encoding/binary"
	"net"
	"time"

	"prtip/internal/codec"
	"prtip/internal/core/model"
	"prtip/internal/probestore"
	"prtip/internal/strategy"
)

// Correlator drains inbound raw packets, reconstructs a ProbeKey, classifies
// the matching probe's terminal state, and hands a populated ScanResult to
// onResult. The scheduler supplies onResult so enrichment (Service Detector,
// OS Fingerprinter) and event publishing stay centralized in one place
// alongside the synchronous Connect-scan path.
type Correlator struct {
	store    *probestore.Store
	onResult func(model.ScanResult)

	droppedUnmatched int64
}

// New creates a Correlator bound to a Store; onResult is invoked once per
// resolved probe with its classified, terminal ScanResult.
func New(store *probestore.Store, onResult func(model.ScanResult)) *Correlator {
	return &Correlator{store: store, onResult: onResult}
}

// HandlePacket reconstructs the ProbeKey for one inbound IP packet,
// classifies the matching probe's port state per spec §4.7, and removes it
// from the Store. On a lookup miss the packet is counted and discarded
// (spec §4.5).
func (c *Correlator) HandlePacket(data []byte, src net.IP) {
	if len(data) < 20 {
		c.droppedUnmatched++
		return
	}
	proto := data[9]
	switch proto {
	case 6: // TCP
		c.handleTCP(data, src)
	case 17: // UDP
		c.handleUDP(data, src)
	case 1: // ICMP
		c.handleICMP(data, src)
	default:
		c.droppedUnmatched++
	}
}

func (c *Correlator) handleTCP(data []byte, src net.IP) {
	headerLen := int(data[0]&0x0F) * 4
	if headerLen > len(data) {
		c.droppedUnmatched++
		return
	}
	tcp, err := codec.ParseTCP(data[headerLen:])
	if err != nil {
		c.droppedUnmatched++
		return
	}
	key := model.ProbeKey{
		Protocol:    model.ProtoTCP,
		LocalPort:   tcp.DstPort,
		RemoteIP:    src.String(),
		RemotePort:  tcp.SrcPort,
		ExpectedAck: tcp.Ack,
	}
	p, ok := c.store.Lookup(key)
	if !ok {
		// Try without the ack constraint: some variants (FIN/NULL/Xmas/ACK)
		// key purely on the four-tuple since there is no SYN/ACK exchange.
		key.ExpectedAck = 0
		p, ok = c.store.Lookup(key)
		if !ok {
			c.droppedUnmatched++
			return
		}
	}
	c.resolveTCP(p, key, tcp.Flags)
}

func (c *Correlator) handleUDP(data []byte, src net.IP) {
	headerLen := int(data[0]&0x0F) * 4
	if headerLen > len(data) {
		c.droppedUnmatched++
		return
	}
	udp, err := codec.ParseUDP(data[headerLen:])
	if err != nil {
		c.droppedUnmatched++
		return
	}
	key := model.ProbeKey{
		Protocol:   model.ProtoUDP,
		LocalPort:  udp.DstPort,
		RemoteIP:   src.String(),
		RemotePort: udp.SrcPort,
	}
	p, ok := c.store.Lookup(key)
	if !ok {
		c.droppedUnmatched++
		return
	}
	c.resolveUDP(p, key)
}

func (c *Correlator) handleICMP(data []byte, src net.IP) {
	headerLen := int(data[0]&0x0F) * 4
	if headerLen > len(data) {
		c.droppedUnmatched++
		return
	}
	icmp, err := codec.ParseICMP(data[headerLen:])
	if err != nil {
		c.droppedUnmatched++
		return
	}
	if icmp.Type == codec.ICMPDestUnreachable || icmp.Type == codec.ICMPTimeExceeded {
		if key, ok := embeddedKey(icmp.Payload); ok {
			if p, ok := c.store.Lookup(key); ok {
				c.resolveICMPUnreachable(p, key, icmp.IsPortUnreachable())
				return
			}
		}
		c.droppedUnmatched++
		return
	}

	key := model.ProbeKey{
		Protocol:   model.ProtoICMP,
		RemoteIP:   src.String(),
		Identifier: icmp.ID,
		Sequence:   icmp.Seq,
	}
	p, ok := c.store.Lookup(key)
	if !ok {
		c.droppedUnmatched++
		return
	}
	c.resolveICMPUnreachable(p, key, false)
}

// embeddedKey reconstructs the ProbeKey for the original datagram embedded
// in an ICMP destination-unreachable/time-exceeded payload (RFC 792): the
// offending IP header followed by the first 8 bytes of its payload.
func embeddedKey(payload []byte) (model.ProbeKey, bool) {
	if len(payload) < 20 {
		return model.ProbeKey{}, false
	}
	ihl := int(payload[0]&0x0F) * 4
	if ihl < 20 || ihl+4 > len(payload) {
		return model.ProbeKey{}, false
	}
	protoNum := payload[9]
	l4 := payload[ihl:]
	if len(l4) < 4 {
		return model.ProbeKey{}, false
	}
	srcPort := binary.BigEndian.Uint16(l4[0:2])
	dstPort := binary.BigEndian.Uint16(l4[2:4])
	dstIP := net.IP(append([]byte(nil), payload[16:20]...))
	switch protoNum {
	case 17: // UDP
		return model.ProbeKey{Protocol: model.ProtoUDP, LocalPort: srcPort, RemoteIP: dstIP.String(), RemotePort: dstPort}, true
	case 6: // TCP
		return model.ProbeKey{Protocol: model.ProtoTCP, LocalPort: srcPort, RemoteIP: dstIP.String(), RemotePort: dstPort}, true
	}
	return model.ProbeKey{}, false
}

func (c *Correlator) resolveTCP(p *model.Probe, key model.ProbeKey, flags int) {
	if ok := c.store.Transition(key, model.ProbeResponded); !ok {
		return
	}
	c.store.Remove(key)
	var state model.PortState
	switch p.Variant {
	case model.VariantSYN, model.VariantDecoy:
		state = strategy.InterpretSYN(true, flags)
	case model.VariantFIN, model.VariantNULL, model.VariantXmas:
		state = strategy.InterpretFINNULLXmas(true, flags)
	case model.VariantACK:
		state = strategy.InterpretACK(true, flags, false)
	default:
		state = model.StateUnknown
	}
	c.emit(p, state)
}

func (c *Correlator) resolveUDP(p *model.Probe, key model.ProbeKey) {
	if ok := c.store.Transition(key, model.ProbeResponded); !ok {
		return
	}
	c.store.Remove(key)
	c.emit(p, strategy.InterpretUDP(true, false, false))
}

// resolveICMPUnreachable handles the ICMP-only outcomes: UDP port-
// unreachable (Closed) and the ACK-scan/generic filtered-by-ICMP case.
func (c *Correlator) resolveICMPUnreachable(p *model.Probe, key model.ProbeKey, portUnreachable bool) {
	if ok := c.store.Transition(key, model.ProbeResponded); !ok {
		return
	}
	c.store.Remove(key)
	var state model.PortState
	switch p.Proto {
	case model.ProtoUDP:
		state = strategy.InterpretUDP(false, true, portUnreachable)
	default:
		state = strategy.InterpretACK(false, 0, true)
	}
	c.emit(p, state)
}

func (c *Correlator) emit(p *model.Probe, state model.PortState) {
	if c.onResult == nil {
		return
	}
	c.onResult(model.ScanResult{
		Target:     p.Target,
		Port:       p.Port,
		Proto:      p.Proto,
		State:      state,
		ObservedAt: time.Now(),
	})
}

// DroppedCount reports packets that could not be correlated to any
// in-flight probe (diagnostic metric, spec §4.5).
func (c *Correlator) DroppedCount() int64 {
	return c.droppedUnmatched
}
