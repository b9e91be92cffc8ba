//go:build darwin

package capture

import (
	"net"
	"syscall"
	"time"

	coreerrors "prtip/internal/core/errors"
)

// darwinCapture uses a raw IPPROTO_RAW-class socket the same way the Linux
// implementation does; BSD sockets support IP_HDRINCL identically, so the
// syscall sequence follows capture_linux.go's, except that Open does not
// bind to an interface and Send does not retry (BPF-device capture for
// the receive side is the idiomatic macOS path but is not available without
// a cgo dependency the pack does not carry, so receive degrades to a raw
// socket read here — noted as a stdlib-only compromise in the design
// ledger).
type darwinCapture struct {
	fd       int
	protocol int
}

func newPlatformCapture(protocol int) Capture {
	return &darwinCapture{protocol: protocol}
}

func checkPrivilege() error {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindPrivilege, "raw socket creation requires elevated privileges", err)
	}
	syscall.Close(fd)
	return nil
}

func (c *darwinCapture) Open(iface string) error {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, c.protocol)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindPrivilege, "failed to create raw socket", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		syscall.Close(fd)
		return coreerrors.Wrap(coreerrors.KindNetwork, "failed to set IP_HDRINCL", err)
	}
	c.fd = fd
	return nil
}

func (c *darwinCapture) Send(dst net.IP, packet []byte) error {
	if err := validateSendPacket(packet); err != nil {
		return err
	}
	v4 := dst.To4()
	if v4 == nil {
		return coreerrors.New(coreerrors.KindNetwork, "raw IPv4 socket cannot send to an IPv6 destination")
	}
	addr := syscall.SockaddrInet4{Addr: [4]byte{v4[0], v4[1], v4[2], v4[3]}}
	if err := syscall.Sendto(c.fd, packet, 0, &addr); err != nil {
		return coreerrors.Wrap(coreerrors.KindNetwork, "sendto failed", err)
	}
	return nil
}

func (c *darwinCapture) SendBatch(dst net.IP, packets [][]byte) error {
	for _, p := range packets {
		if err := c.Send(dst, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *darwinCapture) Recv(timeout time.Duration) ([]byte, net.IP, error) {
	tv := syscall.NsecToTimeval(timeout.Nanoseconds())
	if err := syscall.SetsockoptTimeval(c.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindNetwork, "failed to set recv timeout", err)
	}
	buf := make([]byte, 65535)
	n, from, err := syscall.Recvfrom(c.fd, buf, 0)
	if err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindNetwork, "recvfrom failed", err)
	}
	var src net.IP
	if addr, ok := from.(*syscall.SockaddrInet4); ok {
		src = net.IP(addr.Addr[:])
	}
	return buf[:n], src, nil
}

func (c *darwinCapture) RecvBatch(timeout time.Duration, max int) ([]Packet, error) {
	var out []Packet
	deadline := time.Now().Add(timeout)
	for len(out) < max && time.Now().Before(deadline) {
		data, src, err := c.Recv(time.Until(deadline))
		if err != nil {
			break
		}
		out = append(out, Packet{Data: data, Src: src})
	}
	return out, nil
}

func (c *darwinCapture) Close() error {
	return syscall.Close(c.fd)
}
