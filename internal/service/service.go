// Package service implements component C9: probes an open port with the
// Nmap service-probe grammar (internal/service/nmapprobe), then runs a
// protocol-specific refiner when the generic match hints at a protocol
// the refiners understand more deeply than a single banner regex can
// (TLS version/certificate subject, SSH auth methods, anonymous FTP, SNMP community
// strings, SMB session negotiation). Grounded in overall shape on
// internal/core/scanner/port/scanner.go's scanPort (probe loop then
// enrichment), generalized to a pluggable refiner map.
package service

import (
	"context"
	"net"
	"strings"
	"time"

	"prtip/internal/core/model"
	"prtip/internal/service/nmapprobe"
)

// Detector drives service identification for one open port.
type Detector struct {
	engine *nmapprobe.Engine
}

// New creates a Detector using the embedded built-in probe set. Callers
// with an external nmap-service-probes file should use NewWithRules.
func New() *Detector {
	return NewWithRules(nmapprobe.Builtin())
}

// NewWithRules creates a Detector from caller-supplied probe-file content.
func NewWithRules(rules string) *Detector {
	return &Detector{engine: nmapprobe.NewEngine(rules)}
}

// refiner deepens a generic match for a specific protocol. Identify runs
// one only when the operator's --version-intensity (0-9, spec §6) is 5 or
// more.
type refiner func(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo)

var refiners = map[string]refiner{
	"ssh":   refineSSH,
	"tls":   refineTLS,
	"ssl":   refineTLS,
	"https": refineTLS,
	"ftp":   refineFTP,
	"snmp":  refineSNMP,
	"smb":   refineSMB,
}

// Identify probes target:port and returns the best service guess, or nil if
// nothing matched at all (spec §4.7's service-detect hook, re-entering the
// codec/capture layer as a library call per spec §9's "no reentrancy" note
// — Connect-style sockets only, never the raw scheduler).
func (d *Detector) Identify(ctx context.Context, target net.IP, port uint16, timeout time.Duration, intensity int) (*model.ServiceInfo, error) {
	fp, err := d.engine.Identify(ctx, target, port, timeout)
	if err != nil && fp == nil {
		return nil, err
	}
	if fp == nil {
		return nil, nil
	}
	info := &model.ServiceInfo{
		Service:    fp.Service,
		Product:    fp.ProductName,
		Version:    fp.Version,
		Info:       fp.Info,
		OSHint:     fp.OS,
		CPE:        fp.CPE,
		Confidence: 0.6,
	}
	if intensity >= 5 {
		if r, ok := refiners[strings.ToLower(info.Service)]; ok {
			r(ctx, target, port, timeout, info)
			info.Confidence = 0.9
		}
	}
	return info, nil
}
