package service

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestIdentifyHTTPBanner(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nServer: examplehttpd/1.0\r\n\r\n"))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	info, err := d.Identify(ctx, addr.IP, uint16(addr.Port), time.Second, 0)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if info == nil {
		t.Fatal("expected a match for an HTTP banner")
	}
	if info.Service != "http" {
		t.Fatalf("expected service=http, got %q", info.Service)
	}
}

func TestIdentifyNoMatchReturnsNil(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, _ := d.Identify(ctx, addr.IP, uint16(addr.Port), 200*time.Millisecond, 0)
	if info != nil && info.Service != "" {
		t.Fatalf("expected no confident match, got %+v", info)
	}
}
