package strategy

import (
	"net"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

// DecoyBatch is one real SYN probe interleaved with spoofed decoys sharing
// its destination and timing, so a target's logs cannot easily single out
// the real scanner (spec §4.7's Decoy row).
type DecoyBatch struct {
	Probes     []*RawProbe
	RealIndex  int
	DecoyCount int
}

// BuildDecoyBatch generates the decoy address set via codec.GenerateDecoys
// and builds one SYN packet per address (real and decoy alike), returning
// them in the order they should be sent.
func BuildDecoyBatch(realSrcIP, dstIP net.IP, dstPort uint16, operatorDecoys []net.IP, count int, isV6 bool, v6Prefix net.IP, evasion model.EvasionFlags) (*DecoyBatch, error) {
	addrs, realIdx, err := codec.GenerateDecoys(realSrcIP, operatorDecoys, count, isV6, v6Prefix)
	if err != nil {
		return nil, err
	}
	srcPort := srcPortFor(evasion)
	probes := make([]*RawProbe, 0, len(addrs))
	for _, addr := range addrs {
		p, err := buildRawTCP(addr, dstIP, srcPort, dstPort, codec.FlagSYN, evasion)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}
	return &DecoyBatch{Probes: probes, RealIndex: realIdx, DecoyCount: len(addrs) - 1}, nil
}
