// Package capture implements component C2: a platform-abstract raw send +
// filtered receive layer. Grounded on
// internal/core/lib/network/netraw/socket_linux.go's RawSocket (AF_INET +
// SOCK_RAW + IP_HDRINCL, SO_RCVTIMEO, SO_BINDTODEVICE) for the Linux
// implementation, and on original_source/crates/prtip-network/src/capture/
// mod.rs's PacketCapture trait (open/send_packet/receive_packet/close) for
// the Go interface shape.
package capture

import (
	"net"
	"time"

	coreerrors "prtip/internal/core/errors"
)

// Capture is the polymorphic raw I/O surface: open/send/recv(timeout)/close,
// plus batch variants. The Linux and macOS implementations, Linux included,
// express SendBatch/RecvBatch as loops over the single-packet Send/Recv
// calls; no platform uses sendmmsg/recvmmsg (the pack's go.mod does not
// carry golang.org/x/sys/unix — recorded as a stdlib-only choice in the
// design ledger, not a fabricated dependency).
type Capture interface {
	Open(iface string) error
	Send(dst net.IP, packet []byte) error
	Recv(timeout time.Duration) (packet []byte, src net.IP, err error)
	SendBatch(dst net.IP, packets [][]byte) error
	RecvBatch(timeout time.Duration, max int) ([]Packet, error)
	Close() error
}

// Packet is one received datagram plus its source address.
type Packet struct {
	Data []byte
	Src  net.IP
}

// CheckPrivilege reports whether the current process can plausibly open a
// raw socket, independent of actually opening one (spec §4.2: "exposes a
// privilege check independent of opening").
func CheckPrivilege() error {
	return checkPrivilege()
}

// MaxPacketSize bounds what Send accepts; oversize or empty packets are rejected.
const MaxPacketSize = 64 * 1024

func validateSendPacket(packet []byte) error {
	if len(packet) == 0 {
		return coreerrors.New(coreerrors.KindNetwork, "refusing to send an empty packet")
	}
	if len(packet) > MaxPacketSize {
		return coreerrors.New(coreerrors.KindNetwork, "packet exceeds 64 KiB maximum")
	}
	return nil
}

// Protocol numbers used when opening a raw socket.
const (
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
)

// New returns the platform's Capture implementation for the given IP
// protocol number (e.g. ProtoTCP for SYN/FIN/NULL/Xmas/ACK scans, ProtoICMP
// for ping and idle-scan zombie probes, ProtoUDP for UDP scans).
func New(protocol int) Capture {
	return newPlatformCapture(protocol)
}
