// Package nmapprobe parses and evaluates the nmap-service-probes grammar
// (Probe/match/softmatch/ports/sslports/rarity/fallback directives),
// adapted from internal/core/scanner/port_service/nmap_service/{types.go,
// parser.go,engine.go}: same grammar and regexp2-based matching, scoped
// down to what component C9 needs and generalized to return
// prtip/internal/core/model.ServiceInfo instead of a scanner-local
// FingerPrint type.
package nmapprobe

import (
	"time"

	"github.com/dlclark/regexp2"
)

// Probe is one Nmap service-probe definition.
type Probe struct {
	Name        string
	Protocol    string
	ProbeString string
	Wait        time.Duration
	Ports       []int
	SslPorts    []int
	Rarity      int
	Fallback    []string

	MatchGroup     []*Match
	SoftMatchGroup []*Match
}

// Match is one match/softmatch rule within a Probe.
type Match struct {
	IsSoft              bool
	Service             string
	Pattern             string
	PatternRegexp       *regexp2.Regexp
	VersionInfoTemplate string
}

// Fingerprint is the raw match output before translation to model.ServiceInfo.
type Fingerprint struct {
	ProbeName   string
	Service     string
	ProductName string
	Version     string
	Info        string
	Hostname    string
	OS          string
	DeviceType  string
	CPE         string
}
