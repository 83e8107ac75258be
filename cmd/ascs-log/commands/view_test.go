package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

func TestFormatAccessEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: 64,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryAccess,
		Handle:       0x000F,
		Access: &log.AccessEvent{
			Type:   log.AccessWrite,
			Data:   []byte{0x03, 0x01, 0x01, 0x00},
			Result: 0x00,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	expected := []string{
		"2026-01-28T10:15:32.123456Z [cid:64] IN  TRANSPORT WRITE",
		"Handle: 0x000F",
		"Data: 03010100",
		"Result: SUCCESS (0x00)",
	}
	for _, s := range expected {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestFormatOperationEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: 64,
		Direction:    log.DirectionOut,
		Layer:        log.LayerControlPoint,
		Category:     log.CategoryOperation,
		Operation: &log.OperationEvent{
			Opcode:  0x02,
			NumAses: 2,
			Results: []log.OperationResult{
				{AseID: 1, Code: 0x00},
				{AseID: 2, Code: 0x09, Reason: 0x02},
			},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	expected := []string{
		"CONTROL_POINT CONFIG_QOS",
		"ASEs: 2",
		"ASE 1: SUCCESS",
		"ASE 2: INVALID_CONFIG_PARAMETER_VALUE",
	}
	for _, s := range expected {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestFormatAbortedOperation(t *testing.T) {
	event := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerControlPoint,
		Category:  log.CategoryOperation,
		Operation: &log.OperationEvent{
			Opcode:  0x01,
			NumAses: 1,
			Aborted: true,
			Results: []log.OperationResult{{AseID: 0, Code: 0x02}},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	if !strings.Contains(buf.String(), "Aborted") {
		t.Errorf("expected aborted marker, got:\n%s", buf.String())
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: 64,
		Direction:    log.DirectionOut,
		Layer:        log.LayerEngine,
		Category:     log.CategoryState,
		AseID:        aseID(3),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAse,
			OldState: "ENABLING",
			NewState: "STREAMING",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, s := range []string{"ENGINE STATE", "ASE: 3", "Entity: ASE", "ENABLING -> STREAMING"} {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestFormatHandoverEvent(t *testing.T) {
	tests := []struct {
		name  string
		event *log.HandoverEvent
		want  string
	}{
		{"veto", &log.HandoverEvent{Phase: log.HandoverVeto, Vetoed: true}, "Vetoed: true"},
		{"marshal", &log.HandoverEvent{Phase: log.HandoverMarshal, Bytes: 20, Done: true}, "Bytes: 20 (done)"},
		{"commit", &log.HandoverEvent{Phase: log.HandoverCommit, NewPrimary: true}, "New primary: true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, log.Event{
				Timestamp: time.Now(),
				Layer:     log.LayerHandover,
				Category:  log.CategoryHandover,
				Handover:  tt.event,
			})
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q, got:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestFormatErrorEvent(t *testing.T) {
	code := 14
	event := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "cannot serialize",
			Code:    &code,
			Context: "read ase value",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, s := range []string{"TRANSPORT ERROR", "Message: cannot serialize", "Code: 14", "Context: read ase value"} {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestRunViewAppliesFilter(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: 1, Layer: log.LayerTransport, Category: log.CategoryAccess, Access: &log.AccessEvent{Type: log.AccessRead}},
		{Timestamp: ts, ConnectionID: 2, Layer: log.LayerEngine, Category: log.CategoryState, StateChange: &log.StateChangeEvent{NewState: "IDLE"}},
	}
	path := createTestLogFile(t, events)

	layer := log.LayerEngine
	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "[cid:1]") {
		t.Errorf("transport event not filtered:\n%s", output)
	}
	if !strings.Contains(output, "[cid:2]") {
		t.Errorf("engine event missing:\n%s", output)
	}
}

func TestFormatEventShowsOutcome(t *testing.T) {
	tests := []struct {
		name  string
		event log.Event
		want  string
	}{
		{"access", log.Event{Access: &log.AccessEvent{Type: log.AccessWrite, Result: 0x0D}}, "WRITE [INVALID_ATTRIBUTE_VALUE_LENGTH]"},
		{"operation", log.Event{Operation: &log.OperationEvent{Opcode: 0x03, Results: []log.OperationResult{{AseID: 1}, {AseID: 2, Code: 0x04}}}}, "ENABLE [INVALID_ASE_STATE_TRANSITION]"},
		{"aborted", log.Event{Operation: &log.OperationEvent{Opcode: 0x01, Aborted: true}}, "CONFIG_CODEC [ABORTED]"},
		{"veto", log.Event{Handover: &log.HandoverEvent{Phase: log.HandoverVeto}}, "VETO [ALLOWED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q, got:\n%s", tt.want, buf.String())
			}
		})
	}
}
