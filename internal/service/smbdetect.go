package service

import (
	"context"
	"net"
	"time"

	"github.com/stacktitan/smb/smb"

	"prtip/internal/core/model"
)

// refineSMB attempts a null (unauthenticated) SMB session, grounded on
// internal/core/scanner/brute/protocol/smb.go's smb.Options/NewSession
// wiring, repurposed from credential testing into a single read-only
// capability probe: a session that authenticates with no credentials at
// all signals null-session access is permitted.
func refineSMB(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo) {
	options := smb.Options{Host: target.String(), Port: int(port)}

	type result struct {
		authenticated bool
		err           error
	}
	done := make(chan result, 1)
	go func() {
		session, err := smb.NewSession(options, false)
		if err != nil {
			done <- result{false, err}
			return
		}
		defer session.Close()
		done <- result{session.IsAuthenticated, nil}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		return
	case r := <-done:
		if r.err == nil && r.authenticated {
			info.Info = "null session permitted"
		}
	}
}
