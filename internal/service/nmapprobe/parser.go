package nmapprobe

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
)

var (
	probeRegexp  = regexp.MustCompile(`^Probe ([a-zA-Z0-9]+) ([^ ]+) q\|([^|]*)\|`)
	matchRegexps = []*regexp.Regexp{
		regexp.MustCompile(`^([a-zA-Z0-9-_./]+) m\|([^|]+)\|([is]{0,2})(?: (.*))?$`),
		regexp.MustCompile(`^([a-zA-Z0-9-_./]+) m=([^=]+)=([is]{0,2})(?: (.*))?$`),
		regexp.MustCompile(`^([a-zA-Z0-9-_./]+) m%([^%]+)%([is]{0,2})(?: (.*))?$`),
		regexp.MustCompile(`^([a-zA-Z0-9-_./]+) m@([^@]+)@([is]{0,2})(?: (.*))?$`),
	}
)

// Parse parses the nmap-service-probes text format into a name-indexed
// probe set plus the file's original ordering (the order matters: Nmap
// tries probes in declaration order, then by rarity within a port group).
func Parse(content string) (map[string]*Probe, []string, error) {
	lines := strings.Split(content, "\n")
	probes := make(map[string]*Probe)
	var order []string
	var current *Probe

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "Probe ") {
			if current != nil {
				probes[current.Name] = current
				order = append(order, current.Name)
			}
			p, err := parseProbeLine(line)
			if err != nil {
				logrus.WithError(err).WithField("line", line).Warn("nmapprobe: skipping malformed Probe line")
				current = nil
				continue
			}
			current = p
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "match "):
			if m := parseMatchLine(line[6:], false); m != nil {
				current.MatchGroup = append(current.MatchGroup, m)
			}
		case strings.HasPrefix(line, "softmatch "):
			if m := parseMatchLine(line[10:], true); m != nil {
				current.SoftMatchGroup = append(current.SoftMatchGroup, m)
			}
		case strings.HasPrefix(line, "ports "):
			current.Ports = ParsePortList(line[6:])
		case strings.HasPrefix(line, "sslports "):
			current.SslPorts = ParsePortList(line[9:])
		case strings.HasPrefix(line, "rarity "):
			r, _ := strconv.Atoi(line[7:])
			current.Rarity = r
		case strings.HasPrefix(line, "fallback "):
			current.Fallback = strings.Split(line[9:], ",")
		}
	}
	if current != nil {
		probes[current.Name] = current
		order = append(order, current.Name)
	}
	return probes, order, nil
}

func parseProbeLine(line string) (*Probe, error) {
	m := probeRegexp.FindStringSubmatch(line)
	if len(m) != 4 {
		return nil, errors.New("invalid probe line")
	}
	raw := unescapeProbeString(m[3])
	return &Probe{
		Protocol:    m[1],
		Name:        m[2],
		ProbeString: raw,
		Wait:        6 * time.Second,
	}, nil
}

// unescapeProbeString expands the escape forms nmap-service-probes uses in
// a q|...| probe payload: \r \n \t \\ and \xHH hex bytes.
func unescapeProbeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'r':
			b.WriteByte('\r')
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '0':
			b.WriteByte(0)
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		case 'x':
			if i+3 < len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 3
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func parseMatchLine(line string, isSoft bool) *Match {
	var re *regexp.Regexp
	for _, r := range matchRegexps {
		if r.MatchString(line) {
			re = r
			break
		}
	}
	if re == nil {
		return nil
	}
	args := re.FindStringSubmatch(line)
	service, pattern, opt, info := args[1], args[2], args[3], args[4]
	compiled, err := compilePattern(pattern, opt)
	if err != nil {
		logrus.WithError(err).WithField("pattern", pattern).Debug("nmapprobe: unsupported match pattern")
		return nil
	}
	return &Match{
		IsSoft:              isSoft,
		Service:             service,
		Pattern:             pattern,
		PatternRegexp:       compiled,
		VersionInfoTemplate: info,
	}
}

func compilePattern(pattern, opt string) (*regexp2.Regexp, error) {
	if strings.Contains(opt, "i") {
		pattern = "(?i)" + pattern
	}
	if strings.Contains(opt, "s") {
		pattern = "(?s)" + pattern
	}
	re, err := regexp2.Compile(pattern, 0)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = 100 * time.Millisecond
	return re, nil
}

// ParsePortList parses a comma-separated port/range list from a probe's
// "ports"/"sslports" directive.
func ParsePortList(s string) []int {
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			if len(bounds) != 2 {
				continue
			}
			start, errA := strconv.Atoi(bounds[0])
			end, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil {
				continue
			}
			for i := start; i <= end; i++ {
				ports = append(ports, i)
			}
			continue
		}
		if p, err := strconv.Atoi(part); err == nil && p > 0 {
			ports = append(ports, p)
		}
	}
	return ports
}
