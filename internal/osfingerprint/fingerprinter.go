package osfingerprint

import (
	"context"
	"net"
	"sync"
	"time"

	"prtip/internal/capture"
	"prtip/internal/core/model"
)

// Fingerprinter drives the probe battery against one target and scores the
// collected replies against a loaded database.
type Fingerprinter struct {
	db       *DB
	loadOnce sync.Once
	loadErr  error
	rules    string
}

// New builds a Fingerprinter backed by the embedded built-in database.
func New() *Fingerprinter {
	return &Fingerprinter{rules: Builtin()}
}

// NewWithRules builds a Fingerprinter backed by a caller-supplied database,
// for operators who supply their own nmap-os-db-style file.
func NewWithRules(rules string) *Fingerprinter {
	return &Fingerprinter{rules: rules}
}

func (f *Fingerprinter) ensureLoaded() error {
	f.loadOnce.Do(func() {
		f.db, f.loadErr = ParseDB(f.rules)
	})
	return f.loadErr
}

// Identify sends the full probe battery to target (one open port, one
// closed port), collects replies until timeout elapses, and returns the
// best-scoring model.OSInfo, or nil if nothing in the battery got a reply.
func (f *Fingerprinter) Identify(ctx context.Context, srcIP, target net.IP, openPort, closedPort uint16, timeout time.Duration) (*model.OSInfo, error) {
	if err := f.ensureLoaded(); err != nil {
		return nil, err
	}

	probes, err := BuildBattery(srcIP, target, openPort, closedPort)
	if err != nil {
		return nil, err
	}

	tcpCap := capture.New(capture.ProtoTCP)
	udpCap := capture.New(capture.ProtoUDP)
	icmpCap := capture.New(capture.ProtoICMP)
	for _, c := range []capture.Capture{tcpCap, udpCap, icmpCap} {
		if err := c.Open(""); err != nil {
			return nil, err
		}
		defer c.Close()
	}

	for _, p := range probes {
		var c capture.Capture
		switch p.Protocol {
		case capture.ProtoTCP:
			c = tcpCap
		case capture.ProtoUDP:
			c = udpCap
		case capture.ProtoICMP:
			c = icmpCap
		}
		if err := c.Send(target, p.Packet); err != nil {
			continue
		}
		time.Sleep(100 * time.Millisecond)
	}

	collector := NewCollector(probes)
	deadline := time.Now().Add(timeout)
	perRecv := 200 * time.Millisecond

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			deadline = time.Now()
		default:
		}
		for _, c := range []capture.Capture{tcpCap, udpCap, icmpCap} {
			pkt, src, err := c.Recv(perRecv)
			if err != nil || pkt == nil {
				continue
			}
			if !src.Equal(target) {
				continue
			}
			collector.Observe(pkt, ttlFromPacket(pkt))
		}
	}

	observed := collector.Finish()
	result := f.db.Match(observed)
	if result == nil || result.BestMatch == nil {
		return nil, nil
	}
	return toOSInfo(result), nil
}

func toOSInfo(r *Result) *model.OSInfo {
	info := &model.OSInfo{
		Name:     r.BestMatch.Name,
		Class:    r.BestMatch.Class,
		CPE:      append([]string(nil), r.BestMatch.CPE...),
		Accuracy: r.Accuracy,
	}
	for _, alt := range r.Alternatives {
		info.Alternatives = append(info.Alternatives, model.OSAlternative{Name: alt.Entry.Name, Score: alt.Score})
	}
	return info
}
