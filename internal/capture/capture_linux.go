//go:build linux

package capture

import (
	"fmt"
	"net"
	"syscall"
	"time"

	coreerrors "prtip/internal/core/errors"
)

type linuxCapture struct {
	fd       int
	protocol int
	iface    string
}

func newPlatformCapture(protocol int) Capture {
	return &linuxCapture{protocol: protocol}
}

func checkPrivilege() error {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindPrivilege, "raw socket creation requires elevated privileges", err)
	}
	syscall.Close(fd)
	return nil
}

// Open creates the raw socket with IP_HDRINCL set (we build our own IP
// header), mirroring socket_linux.go's NewRawSocket, and optionally binds
// to a named interface via SO_BINDTODEVICE.
func (c *linuxCapture) Open(iface string) error {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, c.protocol)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindPrivilege, "failed to create raw socket", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		syscall.Close(fd)
		return coreerrors.Wrap(coreerrors.KindNetwork, "failed to set IP_HDRINCL", err)
	}
	if iface != "" {
		if err := syscall.SetsockoptString(fd, syscall.SOL_SOCKET, syscall.SO_BINDTODEVICE, iface); err != nil {
			syscall.Close(fd)
			return coreerrors.Wrap(coreerrors.KindNetwork, fmt.Sprintf("failed to bind to interface %s", iface), err)
		}
	}
	c.fd = fd
	c.iface = iface
	return nil
}

func (c *linuxCapture) Send(dst net.IP, packet []byte) error {
	if err := validateSendPacket(packet); err != nil {
		return err
	}
	v4 := dst.To4()
	if v4 == nil {
		return coreerrors.New(coreerrors.KindNetwork, "linux raw IPv4 socket cannot send to an IPv6 destination")
	}
	addr := syscall.SockaddrInet4{Addr: [4]byte{v4[0], v4[1], v4[2], v4[3]}}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		err := syscall.Sendto(c.fd, packet, 0, &addr)
		if err == nil {
			return nil
		}
		lastErr = err
		if err != syscall.EAGAIN && err != syscall.EINTR {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return retryableOrPermanent(lastErr)
}

// retryableOrPermanent classifies a sendto failure. Transient errors
// (EAGAIN/EINTR) are retried by the caller up to 3 times with a 1ms pause
// (spec §4: failure semantics summary); permanent errors (EACCES,
// ENETUNREACH) are wrapped so the scheduler can mark the target
// filtered/unreachable without aborting the run.
func retryableOrPermanent(err error) error {
	if err == syscall.EAGAIN || err == syscall.EINTR {
		return coreerrors.Wrap(coreerrors.KindNetwork, "transient send failure", err)
	}
	if err == syscall.EACCES || err == syscall.ENETUNREACH {
		return coreerrors.Wrap(coreerrors.KindNetwork, "destination unreachable or permission denied", err)
	}
	return coreerrors.Wrap(coreerrors.KindNetwork, "sendto failed", err)
}

func (c *linuxCapture) SendBatch(dst net.IP, packets [][]byte) error {
	for _, p := range packets {
		if err := c.Send(dst, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *linuxCapture) Recv(timeout time.Duration) ([]byte, net.IP, error) {
	tv := syscall.NsecToTimeval(timeout.Nanoseconds())
	if err := syscall.SetsockoptTimeval(c.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindNetwork, "failed to set recv timeout", err)
	}
	buf := make([]byte, 65535)
	n, from, err := syscall.Recvfrom(c.fd, buf, 0)
	if err != nil {
		if err == syscall.EAGAIN {
			return nil, nil, coreerrors.New(coreerrors.KindTimeout, "recv timed out")
		}
		return nil, nil, coreerrors.Wrap(coreerrors.KindNetwork, "recvfrom failed", err)
	}
	var src net.IP
	if addr, ok := from.(*syscall.SockaddrInet4); ok {
		src = net.IP(addr.Addr[:])
	}
	return buf[:n], src, nil
}

func (c *linuxCapture) RecvBatch(timeout time.Duration, max int) ([]Packet, error) {
	var out []Packet
	deadline := time.Now().Add(timeout)
	for len(out) < max {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		data, src, err := c.Recv(remaining)
		if err != nil {
			if coreerrors.ErrTimeout == err || isTimeout(err) {
				break
			}
			return out, err
		}
		out = append(out, Packet{Data: data, Src: src})
	}
	return out, nil
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Is(error) bool }
	if te, ok := err.(timeoutErr); ok {
		return te.Is(coreerrors.ErrTimeout)
	}
	return false
}

func (c *linuxCapture) Close() error {
	return syscall.Close(c.fd)
}
