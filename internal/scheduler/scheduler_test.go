package scheduler

import (
	"net"
	"testing"
	"time"
)

func TestValidateHostgroupBounds(t *testing.T) {
	if err := ValidateHostgroupBounds(1, 256); err != nil {
		t.Fatalf("expected valid bounds to pass, got %v", err)
	}
	if err := ValidateHostgroupBounds(100, 10); err == nil {
		t.Fatal("expected min > max to be rejected")
	}
	if err := ValidateHostgroupBounds(1, 20000); err == nil {
		t.Fatal("expected an oversize max hostgroup to be rejected")
	}
}

func TestHostgroupsSplitsIntoBatches(t *testing.T) {
	var ips []net.IP
	for i := 0; i < 10; i++ {
		ips = append(ips, net.ParseIP("10.0.0.1"))
	}
	groups := Hostgroups(ips, 1, 4)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups (4,4,2), got %d", len(groups))
	}
	if len(groups[0]) != 4 || len(groups[2]) != 2 {
		t.Fatalf("unexpected batch sizes: %v", groups)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, 50*time.Millisecond)
	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatal("breaker should stay closed before threshold")
		}
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Fatal("breaker should still admit probes before threshold")
	}
	b.RecordFailure()
	if b.State() != "open" {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("breaker should refuse while open and within cool-down")
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	if b.State() != "open" {
		t.Fatalf("expected open, got %s", b.State())
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe to be admitted after cool-down")
	}
	if b.State() != "half_open" {
		t.Fatalf("expected half_open, got %s", b.State())
	}
	b.RecordSuccess()
	if b.State() != "closed" {
		t.Fatalf("expected closed after half-open success, got %s", b.State())
	}
}
