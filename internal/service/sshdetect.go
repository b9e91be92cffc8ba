package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"prtip/internal/core/model"
)

// refineSSH completes the real SSH key-exchange and algorithm negotiation
// (rather than just the banner line the generic probe already captured)
// and records the reason the handshake stopped — normally an auth failure,
// whose message lists the server's supported authentication methods.
func refineSSH(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo) {
	addr := net.JoinHostPort(target.String(), fmt.Sprintf("%d", port))
	cfg := &ssh.ClientConfig{
		User:            "prtip-probe",
		Auth:            nil,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	conn, err := ssh.Dial("tcp", addr, cfg)
	if conn != nil {
		conn.Close()
	}
	if err != nil && info.Info == "" {
		info.Info = err.Error()
	}
}
