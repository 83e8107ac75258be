package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.alog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, reader *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
	return read
}

func u8(v uint8) *uint8    { return &v }
func u32(v uint32) *uint32 { return &v }

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: 1, Direction: DirectionIn, Layer: LayerTransport, Category: CategoryAccess},
		{Timestamp: time.Now(), ConnectionID: 2, Direction: DirectionOut, Layer: LayerControlPoint, Category: CategoryOperation},
		{Timestamp: time.Now(), ConnectionID: 3, Direction: DirectionOut, Layer: LayerEngine, Category: CategoryState},
	}

	reader, err := NewReader(createTestLogFile(t, events))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	for i, e := range read {
		if e.ConnectionID != uint32(i+1) {
			t.Errorf("event %d: ConnectionID got %d, want %d", i, e.ConnectionID, i+1)
		}
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: 1, Layer: LayerTransport, Category: CategoryAccess, AseID: u8(1)},
		{Timestamp: base.Add(time.Second), ConnectionID: 1, Layer: LayerEngine, Category: CategoryState, AseID: u8(2)},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: 2, Layer: LayerEngine, Category: CategoryState, AseID: u8(1), ServerID: "srv-b"},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: 2, Direction: DirectionOut, Layer: LayerHandover, Category: CategoryHandover},
	}
	path := createTestLogFile(t, events)

	layerEngine := LayerEngine
	catHandover := CategoryHandover
	dirOut := DirectionOut
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"connection", Filter{ConnectionID: u32(1)}, 2},
		{"ase", Filter{AseID: u8(1)}, 2},
		{"layer", Filter{Layer: &layerEngine}, 2},
		{"category", Filter{Category: &catHandover}, 1},
		{"direction", Filter{Direction: &dirOut}, 1},
		{"server", Filter{ServerID: "srv-b"}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{ConnectionID: u32(2), Layer: &layerEngine}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			if got := len(readAll(t, reader)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.alog")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReaderFiltersOutcomes(t *testing.T) {
	now := time.Now()
	phase := HandoverCommit
	events := []Event{
		{Timestamp: now, Category: CategoryAccess, Access: &AccessEvent{Type: AccessWrite, Result: 0x80}},
		{Timestamp: now, Category: CategoryOperation, Operation: &OperationEvent{Opcode: 0x01, Results: []OperationResult{{AseID: 1}}}},
		{Timestamp: now, Category: CategoryOperation, Operation: &OperationEvent{Opcode: 0x02, Results: []OperationResult{{AseID: 1, Code: 0x05}}}},
		{Timestamp: now, Category: CategoryHandover, Handover: &HandoverEvent{Phase: HandoverVeto, Vetoed: true}},
		{Timestamp: now, Category: CategoryHandover, Handover: &HandoverEvent{Phase: HandoverCommit}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"opcode", Filter{Opcode: u8(0x02)}, 1},
		{"phase", Filter{Phase: &phase}, 1},
		{"failures", Filter{FailuresOnly: true}, 3},
		{"failed opcode", Filter{Opcode: u8(0x01), FailuresOnly: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := 0
			err := Scan(path, tt.filter, func(Event) error {
				count++
				return nil
			})
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if count != tt.want {
				t.Errorf("got %d events, want %d", count, tt.want)
			}
		})
	}
}

func TestScanStopsOnCallbackError(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: 1},
		{Timestamp: time.Now(), ConnectionID: 2},
	}
	path := createTestLogFile(t, events)

	stop := errors.New("stop")
	seen := 0
	err := Scan(path, Filter{}, func(Event) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("got %v, want %v", err, stop)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times, want 1", seen)
	}
}

func TestReaderTreatsCutOffEventAsEnd(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), ConnectionID: 1},
		{Timestamp: time.Now(), ConnectionID: 2},
	})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 1 || read[0].ConnectionID != 1 {
		t.Errorf("got %+v, want only the first event", read)
	}
}

func TestEventFailed(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"state change", Event{StateChange: &StateChangeEvent{}}, false},
		{"error", Event{Error: &ErrorEventData{Message: "x"}}, true},
		{"access ok", Event{Access: &AccessEvent{}}, false},
		{"access rejected", Event{Access: &AccessEvent{Result: 0x81}}, true},
		{"operation ok", Event{Operation: &OperationEvent{Results: []OperationResult{{AseID: 1}}}}, false},
		{"operation aborted", Event{Operation: &OperationEvent{Aborted: true}}, true},
		{"ase rejected", Event{Operation: &OperationEvent{Results: []OperationResult{{AseID: 1}, {AseID: 2, Code: 0x04}}}}, true},
		{"handover vetoed", Event{Handover: &HandoverEvent{Vetoed: true}}, true},
		{"handover commit", Event{Handover: &HandoverEvent{Phase: HandoverCommit}}, false},
	}
	for _, tt := range tests {
		if got := tt.event.Failed(); got != tt.want {
			t.Errorf("%s: Failed got %v, want %v", tt.name, got, tt.want)
		}
	}
}
