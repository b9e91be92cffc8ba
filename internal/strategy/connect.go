package strategy

import (
	"context"
	"net"
	"strconv"
	"time"

	"prtip/internal/core/model"
)

// ConnectScan performs an OS-level TCP connect probe: connected ⇒ Open,
// refused ⇒ Closed, timeout ⇒ Filtered (spec §4.7's Connect row). This is
// the only variant that needs no raw socket, making it the privilege-error
// fallback for every other variant (spec §7).
func ConnectScan(ctx context.Context, target net.IP, port uint16, timeout time.Duration) model.ScanResult {
	addr := net.JoinHostPort(target.String(), strconv.Itoa(int(port)))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	result := model.ScanResult{
		Target:     target,
		Port:       port,
		Proto:      model.ProtoTCP,
		ObservedAt: time.Now(),
	}
	if err == nil {
		conn.Close()
		result.State = model.StateOpen
		return result
	}
	if isConnRefused(err) {
		result.State = model.StateClosed
		return result
	}
	result.State = model.StateFiltered
	return result
}

// isConnRefused treats any non-timeout dial failure as a refusal (RST),
// matching Nmap's Connect scan behavior; a timeout dial failure means no
// reply arrived at all and is classified as Filtered by the caller instead.
func isConnRefused(err error) bool {
	if e, ok := err.(interface{ Timeout() bool }); ok && e.Timeout() {
		return false
	}
	return true
}
