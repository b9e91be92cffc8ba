// Package output writes scan results in the four file formats named by
// spec.md §6: JSON, Nmap-compatible XML, greppable text, and a newline-
// delimited JSON event log. Grounded in spirit on the teacher's
// reporter/console.go pterm table renderer (TabularData-style grouping of
// results by host before printing), generalized here to structured file
// writers instead of a terminal-only reporter.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"prtip/internal/core/events"
	"prtip/internal/core/model"
)

// Format names one of the supported result file formats.
type Format string

const (
	FormatText      Format = "text"
	FormatJSON      Format = "json"
	FormatXML       Format = "xml"
	FormatGreppable Format = "greppable"
)

// hostResults groups every ScanResult for one target, in the shape the
// JSON/XML/greppable writers all need.
type hostResults struct {
	target  string
	ip      string
	results []*model.ScanResult
}

func groupByHost(results []*model.ScanResult) []*hostResults {
	byHost := make(map[string]*hostResults)
	var order []string
	for _, r := range results {
		key := r.Target.String()
		h, ok := byHost[key]
		if !ok {
			h = &hostResults{target: key, ip: key}
			byHost[key] = h
			order = append(order, key)
		}
		h.results = append(h.results, r)
	}
	sort.Strings(order)
	out := make([]*hostResults, 0, len(order))
	for _, k := range order {
		sort.Slice(byHost[k].results, func(i, j int) bool {
			return byHost[k].results[i].Port < byHost[k].results[j].Port
		})
		out = append(out, byHost[k])
	}
	return out
}

// Write renders results (plus the terminal summary) to w in the requested
// format. Unknown formats are an error, not a silent fallback, so a typo
// in -oJ/-oX/-oG surfaces immediately instead of writing the wrong thing.
func Write(w io.Writer, format Format, results []*model.ScanResult, summary model.ScanSummary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, results, summary)
	case FormatXML:
		return writeXML(w, results, summary)
	case FormatGreppable:
		return writeGreppable(w, results)
	case FormatText, "":
		return writeText(w, results, summary)
	default:
		return fmt.Errorf("output: unsupported format %q", format)
	}
}

// --- JSON ---

type jsonPort struct {
	Port     uint16  `json:"port"`
	Protocol string  `json:"protocol"`
	State    string  `json:"state"`
	Service  *string `json:"service,omitempty"`
	Banner   string  `json:"banner,omitempty"`
}

type jsonService struct {
	Port    uint16 `json:"port"`
	Service string `json:"service"`
	Product string `json:"product,omitempty"`
	Version string `json:"version,omitempty"`
}

type jsonOS struct {
	Name         string   `json:"name"`
	Class        string   `json:"class,omitempty"`
	CPE          []string `json:"cpe,omitempty"`
	Accuracy     uint8    `json:"accuracy"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type jsonHost struct {
	Host     string        `json:"host"`
	Ports    []jsonPort    `json:"ports"`
	Services []jsonService `json:"services,omitempty"`
	OS       *jsonOS       `json:"os,omitempty"`
}

type jsonMetadata struct {
	TargetsScanned int            `json:"targets_scanned"`
	PortsScanned   int            `json:"ports_scanned"`
	ElapsedMS      int64          `json:"elapsed_ms"`
	Counts         map[string]int `json:"counts"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

type jsonDocument struct {
	Hosts        []jsonHost   `json:"hosts"`
	ScanMetadata jsonMetadata `json:"scan_metadata"`
}

func writeJSON(w io.Writer, results []*model.ScanResult, summary model.ScanSummary) error {
	doc := jsonDocument{
		ScanMetadata: jsonMetadata{
			TargetsScanned: summary.TargetsScanned,
			PortsScanned:   summary.PortsScanned,
			ElapsedMS:      summary.Elapsed.Milliseconds(),
			Counts:         countsByName(summary.Counts),
			GeneratedAt:    time.Now(),
		},
	}

	for _, h := range groupByHost(results) {
		jh := jsonHost{Host: h.ip}
		for _, r := range h.results {
			var svcName *string
			if r.Service != nil {
				name := r.Service.Service
				svcName = &name
				jh.Services = append(jh.Services, jsonService{
					Port:    r.Port,
					Service: r.Service.Service,
					Product: r.Service.Product,
					Version: r.Service.Version,
				})
			}
			jh.Ports = append(jh.Ports, jsonPort{
				Port:     r.Port,
				Protocol: string(r.Proto),
				State:    r.State.String(),
				Service:  svcName,
				Banner:   r.Banner,
			})
			if r.OS != nil && jh.OS == nil {
				jo := &jsonOS{
					Name:     r.OS.Name,
					Class:    r.OS.Class,
					CPE:      r.OS.CPE,
					Accuracy: r.OS.Accuracy,
				}
				for _, alt := range r.OS.Alternatives {
					jo.Alternatives = append(jo.Alternatives, fmt.Sprintf("%s (%d%%)", alt.Name, alt.Score))
				}
				jh.OS = jo
			}
		}
		doc.Hosts = append(doc.Hosts, jh)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func countsByName(counts map[model.PortState]int) map[string]int {
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[state.String()] = n
	}
	return out
}

// --- XML (Nmap-compatible nmaprun document) ---

type xmlPort struct {
	Protocol string   `xml:"protocol,attr"`
	PortID   uint16   `xml:"portid,attr"`
	State    xmlState `xml:"state"`
	Service  *xmlSvc  `xml:"service,omitempty"`
}

type xmlState struct {
	State string `xml:"state,attr"`
}

type xmlSvc struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr,omitempty"`
	Version string `xml:"version,attr,omitempty"`
}

type xmlAddress struct {
	Addr string `xml:"addr,attr"`
}

type xmlOSMatch struct {
	Name     string `xml:"name,attr"`
	Accuracy uint8  `xml:"accuracy,attr"`
}

type xmlOS struct {
	Matches []xmlOSMatch `xml:"osmatch"`
}

type xmlHost struct {
	Address xmlAddress `xml:"address"`
	Ports   struct {
		Port []xmlPort `xml:"port"`
	} `xml:"ports"`
	OS *xmlOS `xml:"os,omitempty"`
}

type xmlRunStats struct {
	Finished struct {
		TimeStr string `xml:"timestr,attr"`
		Elapsed string `xml:"elapsed,attr"`
	} `xml:"finished"`
	Hosts struct {
		Up    int `xml:"up,attr"`
		Total int `xml:"total,attr"`
	} `xml:"hosts"`
}

type xmlNmapRun struct {
	XMLName xml.Name    `xml:"nmaprun"`
	Scanner string      `xml:"scanner,attr"`
	Args    string      `xml:"args,attr"`
	Hosts   []xmlHost   `xml:"host"`
	RunStat xmlRunStats `xml:"runstats"`
}

func writeXML(w io.Writer, results []*model.ScanResult, summary model.ScanSummary) error {
	doc := xmlNmapRun{Scanner: "prtip", Args: "prtip scan"}
	doc.RunStat.Finished.TimeStr = time.Now().Format(time.RFC1123)
	doc.RunStat.Finished.Elapsed = fmt.Sprintf("%.2f", summary.Elapsed.Seconds())
	doc.RunStat.Hosts.Total = summary.TargetsScanned

	upHosts := 0
	for _, h := range groupByHost(results) {
		hasOpen := false
		xh := xmlHost{Address: xmlAddress{Addr: h.ip}}
		for _, r := range h.results {
			if r.State == model.StateOpen {
				hasOpen = true
			}
			xp := xmlPort{
				Protocol: string(r.Proto),
				PortID:   r.Port,
				State:    xmlState{State: r.State.String()},
			}
			if r.Service != nil {
				xp.Service = &xmlSvc{Name: r.Service.Service, Product: r.Service.Product, Version: r.Service.Version}
			}
			xh.Ports.Port = append(xh.Ports.Port, xp)
			if r.OS != nil && xh.OS == nil {
				xh.OS = &xmlOS{Matches: []xmlOSMatch{{Name: r.OS.Name, Accuracy: r.OS.Accuracy}}}
				for _, alt := range r.OS.Alternatives {
					xh.OS.Matches = append(xh.OS.Matches, xmlOSMatch{Name: alt.Name, Accuracy: alt.Score})
				}
			}
		}
		if hasOpen {
			upHosts++
		}
		doc.Hosts = append(doc.Hosts, xh)
	}
	doc.RunStat.Hosts.Up = upHosts

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// --- Greppable ---

func writeGreppable(w io.Writer, results []*model.ScanResult) error {
	for _, h := range groupByHost(results) {
		var portsField string
		for i, r := range h.results {
			if i > 0 {
				portsField += ", "
			}
			portsField += fmt.Sprintf("%d/%s//%s///", r.Port, r.State.String(), r.Proto)
		}
		if _, err := fmt.Fprintf(w, "Host: %s ()\tPorts: %s\n", h.ip, portsField); err != nil {
			return err
		}
	}
	return nil
}

// --- Text (human-readable, stdout default) ---

func writeText(w io.Writer, results []*model.ScanResult, summary model.ScanSummary) error {
	for _, h := range groupByHost(results) {
		if _, err := fmt.Fprintf(w, "Scan report for %s\n", h.ip); err != nil {
			return err
		}
		for _, r := range h.results {
			svc := ""
			if r.Service != nil {
				svc = " " + r.Service.Service
				if r.Service.Product != "" {
					svc += " (" + r.Service.Product
					if r.Service.Version != "" {
						svc += " " + r.Service.Version
					}
					svc += ")"
				}
			}
			if _, err := fmt.Fprintf(w, "%d/%-4s %-14s%s\n", r.Port, r.Proto, r.State, svc); err != nil {
				return err
			}
			if r.OS != nil {
				if _, err := fmt.Fprintf(w, "OS: %s (%d%%)\n", r.OS.Name, r.OS.Accuracy); err != nil {
					return err
				}
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d targets scanned, %d ports scanned in %s\n",
		summary.TargetsScanned, summary.PortsScanned, summary.Elapsed.Round(time.Millisecond))
	return err
}

// EventLogWriter appends one JSON-encoded ScanEvent per line to w, forming
// the newline-delimited event log named in spec.md §6.
type EventLogWriter struct {
	w   io.Writer
	enc *json.Encoder
}

// NewEventLogWriter wraps w (typically an append-mode *os.File) as an
// ndjson event log sink.
func NewEventLogWriter(w io.Writer) *EventLogWriter {
	return &EventLogWriter{w: w, enc: json.NewEncoder(w)}
}

type eventLogLine struct {
	Type      events.EventType `json:"type"`
	ScanID    string           `json:"scan_id"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   interface{}      `json:"payload,omitempty"`
}

// WriteEvent appends e as one JSON line.
func (w *EventLogWriter) WriteEvent(e events.ScanEvent) error {
	return w.enc.Encode(eventLogLine{
		Type:      e.Type,
		ScanID:    e.ScanID.String(),
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	})
}
