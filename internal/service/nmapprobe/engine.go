package nmapprobe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine holds a loaded probe set indexed by name and by port, and drives
// probe selection/matching against one open TCP port at a time.
type Engine struct {
	probes     map[string]*Probe
	order      []string
	portProbes map[int][]string

	loadOnce sync.Once
	loadErr  error
	rules    string
}

// NewEngine creates an Engine that lazily parses rules on first use.
func NewEngine(rules string) *Engine {
	return &Engine{
		probes:     make(map[string]*Probe),
		portProbes: make(map[int][]string),
		rules:      rules,
	}
}

func (e *Engine) ensureLoaded() error {
	e.loadOnce.Do(func() {
		probes, order, err := Parse(e.rules)
		if err != nil {
			e.loadErr = err
			return
		}
		e.probes = probes
		e.order = order
		for _, p := range probes {
			for _, port := range p.Ports {
				e.portProbes[port] = append(e.portProbes[port], p.Name)
			}
			for _, port := range p.SslPorts {
				e.portProbes[port] = append(e.portProbes[port], p.Name)
			}
		}
		for port, names := range e.portProbes {
			sort.Slice(names, func(i, j int) bool {
				return e.probes[names[i]].Rarity < e.probes[names[j]].Rarity
			})
			e.portProbes[port] = uniqueStrings(names)
		}
	})
	return e.loadErr
}

// Identify runs the probe-and-match loop against one open TCP port and
// returns the best fingerprint found, or nil if nothing matched.
func (e *Engine) Identify(ctx context.Context, target net.IP, port uint16, timeout time.Duration) (*Fingerprint, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	names := append([]string{"NULL"}, e.portProbes[int(port)]...)
	for _, name := range e.order {
		if p, ok := e.probes[name]; ok && p.Rarity <= 7 {
			names = append(names, name)
		}
	}
	names = uniqueStrings(names)

	var soft *Fingerprint
	for i := 0; i < len(names); i++ {
		select {
		case <-ctx.Done():
			return soft, ctx.Err()
		default:
		}
		probe, ok := e.probes[names[i]]
		if !ok {
			continue
		}
		resp, err := e.send(ctx, target, port, probe, timeout)
		if err != nil {
			continue
		}
		fp, isSoft := e.match(resp, probe)
		if fp == nil {
			continue
		}
		if !isSoft {
			return fp, nil
		}
		if soft == nil {
			soft = fp
		}
		if fp.Service != "" {
			names = prioritize(names, i+1, fp.Service)
		}
	}
	return soft, nil
}

func (e *Engine) send(ctx context.Context, target net.IP, port uint16, probe *Probe, timeout time.Duration) ([]byte, error) {
	addr := net.JoinHostPort(target.String(), fmt.Sprintf("%d", port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	wait := probe.Wait
	if wait == 0 {
		wait = 3 * time.Second
	}
	if timeout > 0 && wait > timeout {
		wait = timeout
	}
	conn.SetDeadline(time.Now().Add(wait))

	if len(probe.ProbeString) > 0 {
		if _, err := conn.Write([]byte(probe.ProbeString)); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

func (e *Engine) match(response []byte, probe *Probe) (*Fingerprint, bool) {
	resp := string(response)
	if fp := matchGroup(probe.MatchGroup, probe.Name, resp); fp != nil {
		return fp, false
	}
	if fp := matchGroup(probe.SoftMatchGroup, probe.Name, resp); fp != nil {
		return fp, true
	}
	return nil, false
}

func matchGroup(group []*Match, probeName, resp string) *Fingerprint {
	for _, m := range group {
		if m.PatternRegexp == nil {
			continue
		}
		ok, _ := m.PatternRegexp.MatchString(resp)
		if !ok {
			continue
		}
		fp := &Fingerprint{ProbeName: probeName, Service: m.Service}
		if match, err := m.PatternRegexp.FindStringMatch(resp); err == nil && match != nil {
			var groups []string
			for _, g := range match.Groups() {
				groups = append(groups, g.String())
			}
			if m.VersionInfoTemplate != "" {
				applyVersionTemplate(fp, m.VersionInfoTemplate, groups)
			}
		}
		return fp
	}
	return nil
}

// applyVersionTemplate parses Nmap's "p/product/ v/version/ i/info/ ..."
// version-info mini-language, substituting $1..$N from the match groups.
func applyVersionTemplate(fp *Fingerprint, template string, groups []string) {
	input := template
	for len(input) > 0 {
		input = strings.TrimSpace(input)
		if len(input) < 2 {
			return
		}
		tag := ""
		if strings.HasPrefix(input, "cpe:") {
			tag = "cpe:"
			input = input[4:]
		} else {
			tag = input[:1]
			input = input[1:]
		}
		if len(input) == 0 {
			return
		}
		delim := input[:1]
		input = input[1:]
		end := strings.Index(input, delim)
		if end == -1 {
			return
		}
		val := substitute(input[:end], groups)
		input = input[end+1:]
		switch tag {
		case "p":
			fp.ProductName = val
		case "v":
			fp.Version = val
		case "i":
			fp.Info = val
		case "h":
			fp.Hostname = val
		case "o":
			fp.OS = val
		case "d":
			fp.DeviceType = val
		case "cpe:":
			fp.CPE = val
		}
	}
}

func substitute(s string, groups []string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	for i, g := range groups {
		s = strings.ReplaceAll(s, fmt.Sprintf("$%d", i), g)
	}
	return s
}

// prioritize moves probes whose name hints at service after a soft-match
// ahead of the remaining, not-yet-tried probes (Nmap's "fast track" on soft
// matches such as an SSL session hinting at an HTTPS retry).
func prioritize(names []string, from int, service string) []string {
	if from >= len(names) {
		return names
	}
	var keywords []string
	switch strings.ToLower(service) {
	case "http":
		keywords = []string{"GetRequest", "HTTPOptions"}
	case "ssl", "tls", "https":
		keywords = []string{"SSL", "TLS"}
	case "ftp":
		keywords = []string{"FTP"}
	case "ssh":
		keywords = []string{"SSH"}
	default:
		return names
	}
	var hit, rest []string
	for _, n := range names[from:] {
		matched := false
		for _, kw := range keywords {
			if strings.Contains(n, kw) {
				matched = true
				break
			}
		}
		if matched {
			hit = append(hit, n)
		} else {
			rest = append(rest, n)
		}
	}
	out := append([]string{}, names[:from]...)
	out = append(out, hit...)
	out = append(out, rest...)
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
