package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/icodeface/tls"

	"prtip/internal/core/model"
)

// refineTLS completes a real ClientHello/ServerHello exchange (rather than
// the raw-byte probe the generic engine uses) to read the negotiated
// protocol version and, when presented, the leaf certificate's subject
// common name — the detail a single regex match can't recover. The cipher
// suite is not recorded.
func refineTLS(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo) {
	addr := net.JoinHostPort(target.String(), fmt.Sprintf("%d", port))
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return
	}
	defer raw.Close()
	raw.SetDeadline(time.Now().Add(timeout))

	conn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true})
	defer conn.Close()
	if err := conn.Handshake(); err != nil {
		return
	}
	state := conn.ConnectionState()
	info.Service = "tls"
	info.Version = fmt.Sprintf("0x%04x", state.Version)
	if len(state.PeerCertificates) > 0 {
		info.Product = state.PeerCertificates[0].Subject.CommonName
	}
}
