// Package cliapp is the thin CLI driver: cobra commands parse operator
// flags into a ScanOptions, which Validate()s and converts to the core's
// immutable model.ScanConfig before handing off to the scheduler. Grounded
// on the teacher's options-struct -> Validate() -> ToTask() conversion
// pattern (cmd/agent/scan/port.go, internal/core/options) and its
// PersistentPreRun-based logger bootstrap (cmd/agent/root.go).
package cliapp

import (
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"prtip/internal/core/model"
)

// ScanOptions is the flat, flag-bindable shape cobra populates directly.
type ScanOptions struct {
	Targets []string
	Ports   string
	Fast    bool

	Variant string // sT, sS, sU, sF, sN, sX, sA, sI

	Timing         int
	MinHostgroup   int
	MaxHostgroup   int
	MaxParallelism int
	AdaptiveRate   bool
	TargetPPS      int

	Fragment    bool
	MTU         int
	Decoys      string
	BadChecksum bool
	TTL         int
	SourcePort  int
	Zombie      string

	IPv6       bool
	IPv4       bool
	DualStack  bool

	ServiceDetect    bool
	VersionIntensity int
	OSDetect         bool

	Privileged bool
	Seed       int64

	OutputJSON      string
	OutputXML       string
	OutputGreppable string
	EventLog        string
}

var variantByFlag = map[string]model.ScanVariant{
	"sT": model.VariantConnect,
	"sS": model.VariantSYN,
	"sU": model.VariantUDP,
	"sF": model.VariantFIN,
	"sN": model.VariantNULL,
	"sX": model.VariantXmas,
	"sA": model.VariantACK,
	"sI": model.VariantIdle,
}

// Validate checks option combinations that ToConfig cannot repair on its
// own: unknown variant names, a port spec that doesn't parse, IP version
// flags that contradict each other, and raw-socket variants requested
// without --privileged (spec §7: privilege errors abort the raw-socket
// variant unless the operator didn't explicitly ask for one — here the
// operator DID ask, explicitly, via -sS/-sF/-sN/-sX/-sA/-sI, so this is a
// hard validation failure rather than a silent fallback).
func (o *ScanOptions) Validate() error {
	if len(o.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	if o.Variant != "" {
		if _, ok := variantByFlag[o.Variant]; !ok {
			return fmt.Errorf("unknown scan variant %q", o.Variant)
		}
	}
	if o.Ports != "" && o.Fast {
		return fmt.Errorf("-p and -F are mutually exclusive")
	}
	ipVersionFlags := 0
	for _, set := range []bool{o.IPv6, o.IPv4, o.DualStack} {
		if set {
			ipVersionFlags++
		}
	}
	if ipVersionFlags > 1 {
		return fmt.Errorf("-6, -4, and --dual-stack are mutually exclusive")
	}
	if o.Variant != "sT" && o.Variant != "" && !o.Privileged {
		return fmt.Errorf("scan variant %s requires raw sockets; pass --privileged or use -sT", o.Variant)
	}
	if o.Variant == "sI" {
		if o.Zombie == "" {
			return fmt.Errorf("-sI requires --zombie <host>; idle scan has no automatic zombie discovery")
		}
		if net.ParseIP(o.Zombie) == nil {
			return fmt.Errorf("--zombie %q is not a valid IP address", o.Zombie)
		}
	}
	if o.VersionIntensity < 0 || o.VersionIntensity > 9 {
		return fmt.Errorf("--version-intensity must be between 0 and 9")
	}
	return nil
}

// ToConfig resolves a validated ScanOptions into the core's immutable
// model.ScanConfig, applying every default spec.md §6's flag table names.
func (o *ScanOptions) ToConfig() (model.ScanConfig, error) {
	seed := o.Seed
	if seed == 0 {
		seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63()
	}

	var targets []*model.Target
	for _, spec := range o.Targets {
		t, err := model.ParseTarget(spec, seed)
		if err != nil {
			return model.ScanConfig{}, fmt.Errorf("target %q: %w", spec, err)
		}
		targets = append(targets, t)
	}

	ports, err := o.resolvePorts()
	if err != nil {
		return model.ScanConfig{}, err
	}

	variant := model.VariantConnect
	if o.Privileged {
		variant = model.VariantSYN
	}
	if o.Variant != "" {
		variant = variantByFlag[o.Variant]
	}

	timing := resolveTiming(o.Timing)
	maxPar := o.MaxParallelism
	if maxPar == 0 {
		maxPar = timing.MaxParallelism
	}
	minHG := o.MinHostgroup
	if minHG == 0 {
		minHG = 1
	}
	maxHG := o.MaxHostgroup
	if maxHG == 0 {
		maxHG = 256
	}

	decoys, err := parseDecoys(o.Decoys)
	if err != nil {
		return model.ScanConfig{}, err
	}

	cfg := model.ScanConfig{
		Targets:        targets,
		Ports:          ports,
		Variant:        variant,
		MinHostgroup:   minHG,
		MaxHostgroup:   maxHG,
		MaxParallelism: maxPar,
		ScanDelay:      timing.ScanDelay,
		AdaptiveRate:   o.AdaptiveRate,
		TargetPPS:      o.TargetPPS,
		Evasion: model.EvasionFlags{
			Fragment:    o.Fragment,
			FragmentMTU: o.MTU,
			BadChecksum: o.BadChecksum,
			CustomTTL:   o.TTL,
			SourcePort:  uint16(o.SourcePort),
			Decoys:      decoys,
		},
		ServiceDetect:    o.ServiceDetect,
		ServiceIntensity: o.VersionIntensity,
		OSDetect:         o.OSDetect,
		IPv6:             o.IPv6,
		PrivilegedMode:   o.Privileged,
		Seed:             seed,
	}
	if o.Zombie != "" {
		cfg.IdleZombie = net.ParseIP(o.Zombie)
	}
	if cfg.ServiceIntensity == 0 {
		cfg.ServiceIntensity = 7
	}
	return cfg, nil
}

func (o *ScanOptions) resolvePorts() (*model.PortRange, error) {
	switch {
	case o.Fast:
		return model.Top100Ports(), nil
	case o.Ports == "":
		return model.Top1000Ports(), nil
	default:
		return model.ParsePortRange(o.Ports)
	}
}

func parseDecoys(spec string) ([]net.IP, error) {
	if spec == "" {
		return nil, nil
	}
	var out []net.IP
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "ME" {
			continue
		}
		ip := net.ParseIP(part)
		if ip == nil {
			return nil, fmt.Errorf("invalid decoy address %q", part)
		}
		out = append(out, ip)
	}
	return out, nil
}

// ConnectTimeout resolves the per-probe connect/response timeout for the
// selected timing template, used by the CLI to build scheduler.Option.
func (o *ScanOptions) ConnectTimeout() time.Duration {
	return resolveTiming(o.Timing).ConnectTimeout
}
