package commands

import (
	"flag"
	"testing"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

func TestQueryRegistersFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var q Query
	q.Register(fs)

	args := []string{"-conn", "64", "-ase", "2", "-opcode", "config-qos", "-phase", "UNMARSHAL", "-layer", "cp", "-direction", "Out", "-category", "op", "-failures", "capture.alog"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if fs.Arg(0) != "capture.alog" {
		t.Errorf("path: got %q", fs.Arg(0))
	}

	f, err := q.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if f.ConnectionID == nil || *f.ConnectionID != 64 {
		t.Errorf("ConnectionID: got %v", f.ConnectionID)
	}
	if f.AseID == nil || *f.AseID != 2 {
		t.Errorf("AseID: got %v", f.AseID)
	}
	if f.Opcode == nil || *f.Opcode != 0x02 {
		t.Errorf("Opcode: got %v", f.Opcode)
	}
	if f.Phase == nil || *f.Phase != log.HandoverUnmarshal {
		t.Errorf("Phase: got %v", f.Phase)
	}
	if f.Layer == nil || *f.Layer != log.LayerControlPoint {
		t.Errorf("Layer: got %v", f.Layer)
	}
	if f.Direction == nil || *f.Direction != log.DirectionOut {
		t.Errorf("Direction: got %v", f.Direction)
	}
	if f.Category == nil || *f.Category != log.CategoryOperation {
		t.Errorf("Category: got %v", f.Category)
	}
	if !f.FailuresOnly {
		t.Error("FailuresOnly not set")
	}
}

func TestQueryAcceptsLongNames(t *testing.T) {
	q := Query{Opcode: "receiver_start_ready", Layer: "control-point", Category: "notification"}
	f, err := q.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if *f.Opcode != 0x04 || *f.Layer != log.LayerControlPoint || *f.Category != log.CategoryNotification {
		t.Errorf("got opcode %d layer %v category %v", *f.Opcode, *f.Layer, *f.Category)
	}

	q = Query{Opcode: "8"}
	if f, err = q.Filter(); err != nil || *f.Opcode != 0x08 {
		t.Errorf("numeric opcode: got %v, %v", f.Opcode, err)
	}
}

func TestQueryEmptySelectsEverything(t *testing.T) {
	var q Query
	f, err := q.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if f.ConnectionID != nil || f.AseID != nil || f.Opcode != nil || f.Phase != nil || f.Layer != nil || f.Direction != nil || f.Category != nil || f.TimeStart != nil || f.TimeEnd != nil || f.FailuresOnly {
		t.Errorf("expected empty filter, got %+v", f)
	}
}

func TestQueryRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"conn", Query{Conn: "abc"}},
		{"ase zero", Query{Ase: "0"}},
		{"ase range", Query{Ase: "300"}},
		{"opcode name", Query{Opcode: "stream"}},
		{"opcode number", Query{Opcode: "9"}},
		{"phase", Query{Phase: "handshake"}},
		{"layer", Query{Layer: "wire"}},
		{"direction", Query{Direction: "sideways"}},
		{"category", Query{Category: "frame"}},
		{"since", Query{Since: "yesterday"}},
		{"until", Query{Until: "2026-13-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.q.Filter(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
