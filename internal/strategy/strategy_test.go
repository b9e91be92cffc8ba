package strategy

import (
	"context"
	"net"
	"testing"
	"time"

	"prtip/internal/codec"
	"prtip/internal/core/model"
)

func TestBuildSYNProducesKey(t *testing.T) {
	p, err := BuildSYN(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 80, model.EvasionFlags{})
	if err != nil {
		t.Fatalf("BuildSYN: %v", err)
	}
	if p.Key.Protocol != model.ProtoTCP || p.Key.RemotePort != 80 {
		t.Fatalf("unexpected key: %+v", p.Key)
	}
	if p.Key.ExpectedAck == 0 {
		t.Fatal("SYN probe should set ExpectedAck")
	}
}

func TestInterpretSYN(t *testing.T) {
	if InterpretSYN(false, 0) != model.StateFiltered {
		t.Fatal("no reply should be Filtered")
	}
	if InterpretSYN(true, codec.FlagRST) != model.StateClosed {
		t.Fatal("RST should be Closed")
	}
	if InterpretSYN(true, codec.FlagSYN|codec.FlagACK) != model.StateOpen {
		t.Fatal("SYN/ACK should be Open")
	}
}

func TestInterpretFINNULLXmasSharedTable(t *testing.T) {
	if InterpretFINNULLXmas(false, 0) != model.StateOpenFiltered {
		t.Fatal("no reply should be OpenFiltered")
	}
	if InterpretFINNULLXmas(true, codec.FlagRST) != model.StateClosed {
		t.Fatal("RST should be Closed")
	}
}

func TestInterpretUDP(t *testing.T) {
	if InterpretUDP(true, false, false) != model.StateOpen {
		t.Fatal("UDP reply should be Open")
	}
	if InterpretUDP(false, true, true) != model.StateClosed {
		t.Fatal("ICMP port-unreachable should be Closed")
	}
	if InterpretUDP(false, true, false) != model.StateFiltered {
		t.Fatal("other ICMP should be Filtered")
	}
	if InterpretUDP(false, false, false) != model.StateOpenFiltered {
		t.Fatal("no reply should be OpenFiltered")
	}
}

func TestClassifyIPIDDelta(t *testing.T) {
	cases := map[uint16]model.PortState{
		0: model.StateFiltered,
		1: model.StateClosed,
		2: model.StateOpen,
		9: model.StateOpen,
	}
	for delta, want := range cases {
		if got := ClassifyIPIDDelta(delta); got != want {
			t.Errorf("delta=%d: got %v want %v", delta, got, want)
		}
	}
}

func TestBuildDecoyBatchIncludesReal(t *testing.T) {
	decoys := []net.IP{
		net.ParseIP("10.0.0.11"), net.ParseIP("10.0.0.12"), net.ParseIP("10.0.0.13"),
		net.ParseIP("10.0.0.14"), net.ParseIP("10.0.0.15"),
	}
	batch, err := BuildDecoyBatch(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.99"), 22, decoys, len(decoys), false, nil, model.EvasionFlags{})
	if err != nil {
		t.Fatalf("BuildDecoyBatch: %v", err)
	}
	if len(batch.Probes) != 6 {
		t.Fatalf("expected 6 probes (5 decoys + real), got %d", len(batch.Probes))
	}
	if batch.RealIndex < 0 || batch.RealIndex >= len(batch.Probes) {
		t.Fatalf("real index out of range: %d", batch.RealIndex)
	}
}

func TestConnectScanOpenLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := ConnectScan(ctx, addr.IP, uint16(addr.Port), time.Second)
	if res.State != model.StateOpen {
		t.Fatalf("expected Open, got %v", res.State)
	}
}

func TestConnectScanClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := ConnectScan(ctx, addr.IP, uint16(addr.Port), time.Second)
	if res.State != model.StateClosed {
		t.Fatalf("expected Closed, got %v", res.State)
	}
}
