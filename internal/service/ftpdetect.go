package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jlaffaye/ftp"

	"prtip/internal/core/model"
)

// refineFTP attempts an anonymous login, grounded on
// internal/core/scanner/brute/protocol/ftp.go's use of the same library's
// DialTimeout/Login/Logout calls, repurposed here from credential testing
// into a single read-only anonymous-access check.
func refineFTP(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo) {
	addr := net.JoinHostPort(target.String(), fmt.Sprintf("%d", port))
	conn, err := ftp.DialTimeout(addr, timeout)
	if err != nil {
		return
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous@"); err == nil {
		info.Info = "anonymous login permitted"
		conn.Logout()
	}
}
