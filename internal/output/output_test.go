package output

import (
	"bytes"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"prtip/internal/core/events"
	"prtip/internal/core/model"
)

func sampleResults() []*model.ScanResult {
	return []*model.ScanResult{
		{
			Target: net.ParseIP("192.0.2.1"),
			Port:   22,
			Proto:  model.ProtoTCP,
			State:  model.StateOpen,
			Service: &model.ServiceInfo{
				Service: "ssh",
				Product: "OpenSSH",
				Version: "9.6",
			},
		},
		{
			Target: net.ParseIP("192.0.2.1"),
			Port:   80,
			Proto:  model.ProtoTCP,
			State:  model.StateClosed,
		},
	}
}

func sampleSummary() model.ScanSummary {
	return model.ScanSummary{
		TargetsScanned: 1,
		PortsScanned:   2,
		Elapsed:        250 * time.Millisecond,
		Counts: map[model.PortState]int{
			model.StateOpen:   1,
			model.StateClosed: 1,
		},
	}
}

func TestWriteJSONProducesValidDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleResults(), sampleSummary()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(doc.Hosts))
	}
	if len(doc.Hosts[0].Ports) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(doc.Hosts[0].Ports))
	}
	if doc.ScanMetadata.TargetsScanned != 1 {
		t.Fatalf("expected targets_scanned 1, got %d", doc.ScanMetadata.TargetsScanned)
	}
}

func TestWriteXMLContainsNmapRun(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXML, sampleResults(), sampleSummary()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<nmaprun") {
		t.Fatalf("expected nmaprun root element, got: %s", out)
	}
	if !strings.Contains(out, `portid="22"`) {
		t.Fatalf("expected portid=22 attribute, got: %s", out)
	}
}

func TestWriteGreppableFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatGreppable, sampleResults(), sampleSummary()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "Host: 192.0.2.1") {
		t.Fatalf("expected host line, got: %s", line)
	}
	if !strings.Contains(line, "22/open//tcp///") {
		t.Fatalf("expected greppable port field, got: %s", line)
	}
}

func TestWriteUnknownFormatErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Format("bogus"), sampleResults(), sampleSummary()); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}

func TestEventLogWriterWritesOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventLogWriter(&buf)

	scanID := uuid.New()
	if err := w.WriteEvent(events.New(events.EventScanStarted, scanID, nil)); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := w.WriteEvent(events.New(events.EventPortFound, scanID, events.PortFoundPayload{
		Target: "192.0.2.1", Port: 22, Proto: model.ProtoTCP, State: model.StateOpen,
	})); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}
	for _, line := range lines {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
	}
}
