//go:build windows

package capture

import (
	"net"
	"time"

	coreerrors "prtip/internal/core/errors"
)

// windowsCapture is a graceful stub: Windows disallows raw TCP/UDP sockets
// since Windows XP SP2, so genuine send/recv requires Npcap, a cgo-bound
// driver dependency outside this module's pure-Go dependency set (and not
// present anywhere in the pack). Rather than fabricate a binding, this
// implementation reports a clear unsupported-platform error at Open time
// (spec §4.2: "graceful unsupported-platform error"), leaving the Connect
// scan variant — which needs no raw socket — fully functional on Windows.
type windowsCapture struct {
	protocol int
}

func newPlatformCapture(protocol int) Capture {
	return &windowsCapture{protocol: protocol}
}

func checkPrivilege() error {
	return coreerrors.New(coreerrors.KindPrivilege, "raw-socket capture is unavailable on Windows without Npcap")
}

func (c *windowsCapture) Open(iface string) error {
	return coreerrors.New(coreerrors.KindPrivilege, "raw-socket capture is unavailable on Windows without Npcap; use the Connect scan variant")
}

func (c *windowsCapture) Send(dst net.IP, packet []byte) error {
	return coreerrors.New(coreerrors.KindNetwork, "raw-socket capture is unavailable on Windows without Npcap")
}

func (c *windowsCapture) SendBatch(dst net.IP, packets [][]byte) error {
	return coreerrors.New(coreerrors.KindNetwork, "raw-socket capture is unavailable on Windows without Npcap")
}

func (c *windowsCapture) Recv(timeout time.Duration) ([]byte, net.IP, error) {
	return nil, nil, coreerrors.New(coreerrors.KindNetwork, "raw-socket capture is unavailable on Windows without Npcap")
}

func (c *windowsCapture) RecvBatch(timeout time.Duration, max int) ([]Packet, error) {
	return nil, coreerrors.New(coreerrors.KindNetwork, "raw-socket capture is unavailable on Windows without Npcap")
}

func (c *windowsCapture) Close() error {
	return nil
}
