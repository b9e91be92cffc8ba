package codec

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"net"

	coreerrors "prtip/internal/core/errors"
)

// DefaultFragmentMTU matches Nmap's -f: 8 payload bytes per fragment after a
// 20-byte IPv4 header (28 bytes total), used when the operator requests
// fragmentation but supplies no explicit MTU (spec §4.1).
const DefaultFragmentMTU = 28

// Fragment splits an IPv4 packet (20-byte header + payload, no options) into
// N fragments of at most mtu bytes each, per RFC 791. Offsets are in 8-byte
// units as required by the IP header's fragment-offset field, so mtu's
// payload portion is rounded down to a multiple of 8 for every fragment but
// the last.
func Fragment(packet []byte, mtu int) ([][]byte, error) {
	if len(packet) < 20 {
		return nil, coreerrors.New(coreerrors.KindParse, "packet shorter than minimum IPv4 header")
	}
	if mtu <= 0 {
		mtu = DefaultFragmentMTU
	}
	headerLen := int(packet[0]&0x0F) * 4
	if headerLen < 20 || headerLen > len(packet) {
		return nil, coreerrors.New(coreerrors.KindParse, "invalid IPv4 header length for fragmentation")
	}
	payload := packet[headerLen:]
	chunkSize := mtu - headerLen
	chunkSize -= chunkSize % 8
	if chunkSize <= 0 {
		return nil, fmt.Errorf("mtu %d too small to carry any payload after an %d-byte header", mtu, headerLen)
	}

	var fragments [][]byte
	offsetUnits := 0
	for start := 0; start < len(payload); start += chunkSize {
		end := start + chunkSize
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		frag := make([]byte, headerLen+(end-start))
		copy(frag, packet[:headerLen])
		copy(frag[headerLen:], payload[start:end])

		frag[0] = (frag[0] & 0xF0) | byte(headerLen/4)
		flagsFrag := uint16(offsetUnits) & 0x1FFF
		if more {
			flagsFrag |= 0x2000 // MF bit
		}
		binary.BigEndian.PutUint16(frag[6:8], flagsFrag)
		binary.BigEndian.PutUint16(frag[2:4], uint16(len(frag)))
		frag[10], frag[11] = 0, 0
		binary.BigEndian.PutUint16(frag[10:12], Checksum(frag[:headerLen]))

		fragments = append(fragments, frag)
		offsetUnits += chunkSize / 8
	}
	return fragments, nil
}

// Reassemble inverts Fragment: given IPv4 fragments sharing the same
// identification field, it reconstructs the original packet by
// concatenating payload in fragment-offset order (testable property #7:
// fragment-then-reassemble round-trips byte-equal).
func Reassemble(fragments [][]byte) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no fragments to reassemble")
	}
	type piece struct {
		offset  int
		payload []byte
	}
	var pieces []piece
	headerLen := int(fragments[0][0]&0x0F) * 4
	header := append([]byte(nil), fragments[0][:headerLen]...)
	for _, f := range fragments {
		hl := int(f[0]&0x0F) * 4
		flagsFrag := binary.BigEndian.Uint16(f[6:8])
		offset := int(flagsFrag&0x1FFF) * 8
		pieces = append(pieces, piece{offset: offset, payload: f[hl:]})
	}
	total := 0
	for _, p := range pieces {
		if end := p.offset + len(p.payload); end > total {
			total = end
		}
	}
	out := make([]byte, total)
	for _, p := range pieces {
		copy(out[p.offset:], p.payload)
	}
	header[6], header[7] = 0, 0 // clear MF/offset on the reassembled packet
	binary.BigEndian.PutUint16(header[2:4], uint16(headerLen+total))
	header[10], header[11] = 0, 0
	binary.BigEndian.PutUint16(header[10:12], Checksum(header))
	return append(header, out...), nil
}

// GenerateDecoys builds a decoy source list for the Decoy strategy (C8).
// For IPv4, operatorDecoys is used as given, minus duplicates and any copy of
// the real source, and count is ignored; for IPv6, addresses are drawn
// uniformly at random from the target's /64 (spec §4.1). The real source's
// position within the returned list is randomized; per spec §9's recorded
// Open Question decision, selection is uniform. Uniqueness is enforced; if
// exhaustion makes a unique draw impossible the generator gives up after a
// bounded retry budget rather than looping forever.
func GenerateDecoys(real net.IP, operatorDecoys []net.IP, count int, isV6 bool, v6Prefix net.IP) ([]net.IP, int, error) {
	var pool []net.IP
	seen := map[string]struct{}{real.String(): {}}
	if isV6 {
		const maxAttempts = 1000
		for len(pool) < count {
			attempts := 0
			for {
				attempts++
				if attempts > maxAttempts {
					return nil, 0, fmt.Errorf("could not generate %d unique decoy addresses after %d attempts", count, maxAttempts)
				}
				addr, err := randomV6InPrefix(v6Prefix)
				if err != nil {
					return nil, 0, err
				}
				if _, dup := seen[addr.String()]; !dup {
					seen[addr.String()] = struct{}{}
					pool = append(pool, addr)
					break
				}
			}
		}
	} else {
		for _, d := range operatorDecoys {
			if _, dup := seen[d.String()]; dup {
				continue
			}
			seen[d.String()] = struct{}{}
			pool = append(pool, d)
		}
	}

	realIdx, err := randomIndex(len(pool) + 1)
	if err != nil {
		return nil, 0, err
	}
	out := make([]net.IP, 0, len(pool)+1)
	out = append(out, pool[:realIdx]...)
	out = append(out, real)
	out = append(out, pool[realIdx:]...)
	return out, realIdx, nil
}

func randomV6InPrefix(prefix net.IP) (net.IP, error) {
	base := prefix.To16()
	if base == nil {
		return nil, fmt.Errorf("invalid IPv6 prefix")
	}
	addr := make(net.IP, 16)
	copy(addr[:8], base[:8])
	tail := make([]byte, 8)
	if _, err := cryptoRandRead(tail); err != nil {
		return nil, err
	}
	copy(addr[8:], tail)
	return addr, nil
}

func cryptoRandRead(b []byte) (int, error) {
	return rand.Read(b)
}

func randomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
