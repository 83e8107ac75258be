package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

func TestStatsCountsByLayer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryAccess},
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryNotification},
		{Timestamp: ts, Layer: log.LayerControlPoint, Category: log.CategoryOperation},
		{Timestamp: ts, Layer: log.LayerHandover, Category: log.CategoryHandover},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, s := range []string{"TRANSPORT:", "CONTROL_POINT:", "HANDOVER:", "ACCESS:", "NOTIFICATION:", "OPERATION:"} {
		if !strings.Contains(output, s) {
			t.Errorf("expected %s in output", s)
		}
	}
	if strings.Contains(output, "ENGINE:") {
		t.Error("unexpected ENGINE layer in output")
	}
	if !strings.Contains(output, "Total Events: 4") {
		t.Errorf("expected total of 4, got:\n%s", output)
	}
}

func TestStatsCountsConnections(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: 64, Category: log.CategoryAccess},
		{
			Timestamp: ts, ConnectionID: 64,
			Direction: log.DirectionIn, Layer: log.LayerControlPoint, Category: log.CategoryOperation,
			Operation: &log.OperationEvent{Opcode: 0x01, NumAses: 2},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: 64,
			Direction: log.DirectionOut, Layer: log.LayerControlPoint, Category: log.CategoryOperation,
			Operation: &log.OperationEvent{
				Opcode:  0x01,
				NumAses: 2,
				Results: []log.OperationResult{{AseID: 1}, {AseID: 2, Code: 0x03}},
			},
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: 64, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityAse, NewState: "CODEC_CONFIGURED"},
		},
		{Timestamp: ts, ConnectionID: 65, Category: log.CategoryAccess},
		{Timestamp: ts, Category: log.CategoryHandover, Handover: &log.HandoverEvent{Phase: log.HandoverVeto}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, s := range []string{
		"Connections: 2",
		"[cid 64] 4 events, duration 2s",
		"Operations: 1 (1 ASE rejections)",
		"ASE transitions: 1",
		"[cid 65] 1 events",
		"CONFIG_CODEC:",
		"SUCCESS:",
		"INVALID_ASE_ID:",
	} {
		if !strings.Contains(output, s) {
			t.Errorf("expected %q in output, got:\n%s", s, output)
		}
	}
}

func TestStatsCountsErrorsAndHandovers(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x"}},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "y"}},
		{Timestamp: ts, ConnectionID: 3, Category: log.CategoryHandover, Handover: &log.HandoverEvent{Phase: log.HandoverCommit, NewPrimary: true}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Failures: 2 (2 errors)") {
		t.Errorf("expected 2 failures, got:\n%s", output)
	}
	if !strings.Contains(output, "Handover commits: 1") {
		t.Errorf("expected 1 handover commit, got:\n%s", output)
	}
	if !strings.Contains(output, "COMMIT:") {
		t.Errorf("expected phase counts, got:\n%s", output)
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestStatsAppliesQuery(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: 1, Category: log.CategoryAccess},
		{Timestamp: ts, ConnectionID: 2, Category: log.CategoryAccess},
		{Timestamp: ts, ConnectionID: 2, Category: log.CategoryAccess, Access: &log.AccessEvent{Result: 0x80}},
	}
	path := createTestLogFile(t, events)

	q := Query{Conn: "2", Failures: true}
	filter, err := q.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunStats(path, filter, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "Total Events: 1") || !strings.Contains(out, "Failures: 1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
