package osfingerprint

import (
	"net"
	"testing"
)

func mustIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("bad test IP: " + s)
	}
	return ip
}

func TestParseDBReadsEntries(t *testing.T) {
	db, err := ParseDB(Builtin())
	if err != nil {
		t.Fatalf("ParseDB: %v", err)
	}
	if len(db.Entries) < 3 {
		t.Fatalf("expected at least 3 builtin entries, got %d", len(db.Entries))
	}
	var sawLinux bool
	for _, e := range db.Entries {
		if e.Name == "Linux 5.x generic" {
			sawLinux = true
			if e.Rules["SEQ"] == "" {
				t.Fatal("expected a SEQ rule on the Linux entry")
			}
		}
	}
	if !sawLinux {
		t.Fatal("expected a Linux entry in the builtin database")
	}
}

func TestMatchPicksExactEntry(t *testing.T) {
	db, err := ParseDB(Builtin())
	if err != nil {
		t.Fatalf("ParseDB: %v", err)
	}
	var want *Entry
	for _, e := range db.Entries {
		if e.Name == "Windows 10/11 generic" {
			want = e
		}
	}
	if want == nil {
		t.Fatal("fixture entry missing")
	}

	result := db.Match(want.Rules)
	if result == nil || result.BestMatch == nil {
		t.Fatal("expected a match")
	}
	if result.BestMatch.Name != want.Name {
		t.Fatalf("expected best match %q, got %q", want.Name, result.BestMatch.Name)
	}
	if result.Accuracy != 100 {
		t.Fatalf("expected 100%% accuracy on an exact rule echo, got %d", result.Accuracy)
	}
}

func TestMatchValueAlternationAndRange(t *testing.T) {
	if !matchValue("S", "S|A") {
		t.Fatal("expected S to satisfy S|A")
	}
	if matchValue("F", "S|A") {
		t.Fatal("expected F to fail S|A")
	}
	if !matchValue("50", "40-60") {
		t.Fatal("expected hex 0x50 to satisfy range 40-60")
	}
	if matchValue("70", "40-60") {
		t.Fatal("expected hex 0x70 to fail range 40-60")
	}
}

func TestCalculateScorePartialMatch(t *testing.T) {
	target := map[string]string{
		"SEQ": "R=Y%DF=Y%TG=40%W=7210%S=S%A=Z%F=Z",
		"T2":  "R=N",
	}
	rule := map[string]string{
		"SEQ": "R=Y%DF=Y%TG=40%W=7210%S=S%A=Z%F=Z",
		"T2":  "R=Y%DF=Y%TG=40%W=7210%S=S%A=Z%F=Z",
	}
	score := calculateScore(target, rule)
	if score != 50 {
		t.Fatalf("expected 50%% (1 of 2 tests matched), got %v", score)
	}
}

func TestBuildBatteryProducesExpectedKinds(t *testing.T) {
	src := mustIP("10.0.0.5")
	dst := mustIP("10.0.0.6")
	probes, err := BuildBattery(src, dst, 80, 9)
	if err != nil {
		t.Fatalf("BuildBattery: %v", err)
	}
	if len(probes) != 10 {
		t.Fatalf("expected 10 probes (SEQ,ECN,T2-T7,IE,U1), got %d", len(probes))
	}
	var sawIE, sawU1 bool
	for _, p := range probes {
		if p.Kind == kindIE {
			sawIE = true
		}
		if p.Kind == kindU1 {
			sawU1 = true
		}
	}
	if !sawIE || !sawU1 {
		t.Fatal("expected both an IE (ICMP) and a U1 (UDP) probe in the battery")
	}
}
