package service

import (
	"context"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"

	"prtip/internal/core/model"
)

// refineSNMP probes the well-known "public" community string for sysDescr
// (OID 1.3.6.1.2.1.1.1.0), grounded on
// internal/core/scanner/brute/protocol/snmp.go's gosnmp.GoSNMP wiring,
// repurposed from community-string brute-forcing into a single read-only
// identification probe.
func refineSNMP(ctx context.Context, target net.IP, port uint16, timeout time.Duration, info *model.ServiceInfo) {
	params := &gosnmp.GoSNMP{
		Target:    target.String(),
		Port:      port,
		Community: "public",
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   0,
		Transport: "udp",
	}
	if err := params.Connect(); err != nil {
		return
	}
	defer params.Conn.Close()

	select {
	case <-ctx.Done():
		return
	default:
	}

	result, err := params.Get([]string{"1.3.6.1.2.1.1.1.0"})
	if err != nil || result == nil || result.Error != gosnmp.NoError || len(result.Variables) == 0 {
		return
	}
	if s, ok := result.Variables[0].Value.(string); ok {
		info.Product = s
	} else if b, ok := result.Variables[0].Value.([]byte); ok {
		info.Product = string(b)
	}
	info.Info = "community \"public\" accepted"
}
