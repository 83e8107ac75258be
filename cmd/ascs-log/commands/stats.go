package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[uint32]*ConnectionStats
	Opcodes           map[ascs.Opcode]int
	ResponseCodes     map[ascs.ResponseCode]int
	HandoverPhases    map[log.HandoverPhase]int
	Handovers         int
	Failures          int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen    time.Time
	LastSeen     time.Time
	Events       int
	Operations   int
	Rejections   int
	StateChanges int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[uint32]*ConnectionStats),
		Opcodes:           make(map[ascs.Opcode]int),
		ResponseCodes:     make(map[ascs.ResponseCode]int),
		HandoverPhases:    make(map[log.HandoverPhase]int),
	}
}

// RunStats summarizes the events of path matching filter.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats := newStats()
	err := log.Scan(path, filter, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("stats %s: %w", path, err)
	}
	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Failed() {
		s.Failures++
	}
	if event.Error != nil {
		s.Errors++
	}
	if h := event.Handover; h != nil {
		s.HandoverPhases[h.Phase]++
		if h.Phase == log.HandoverCommit {
			s.Handovers++
		}
	}
	// A written operation is logged on arrival and again when its
	// notification goes out carrying the response codes.
	op := event.Operation
	if op != nil && event.Layer == log.LayerControlPoint {
		if event.Direction == log.DirectionIn {
			s.Opcodes[ascs.Opcode(op.Opcode)]++
		} else {
			for _, r := range op.Results {
				s.ResponseCodes[ascs.ResponseCode(r.Code)]++
			}
		}
	}

	// Server-wide events carry connection id 0.
	if event.ConnectionID == 0 {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.StateChange != nil && event.StateChange.Entity == log.StateEntityAse {
		conn.StateChanges++
	}
	if op != nil && event.Layer == log.LayerControlPoint {
		if event.Direction == log.DirectionIn {
			conn.Operations++
		}
		for _, r := range op.Results {
			if r.Code != 0 {
				conn.Rejections++
			}
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== ASCS Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerControlPoint, log.LayerEngine, log.LayerHandover} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryAccess, log.CategoryNotification, log.CategoryOperation, log.CategoryState, log.CategoryHandover, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		ids := make([]uint32, 0, len(stats.Connections))
		for id := range stats.Connections {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return stats.Connections[ids[i]].FirstSeen.Before(stats.Connections[ids[j]].FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, id := range ids {
			cs := stats.Connections[id]
			duration := cs.LastSeen.Sub(cs.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [cid %d] %d events, duration %s\n", id, cs.Events, duration)
			if cs.Operations > 0 {
				fmt.Fprintf(w, "           Operations: %d (%d ASE rejections)\n", cs.Operations, cs.Rejections)
			}
			if cs.StateChanges > 0 {
				fmt.Fprintf(w, "           ASE transitions: %d\n", cs.StateChanges)
			}
		}
	}

	if len(stats.Opcodes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Operations:")
		for op := ascs.OpConfigCodec; op <= ascs.OpRelease; op++ {
			if count := stats.Opcodes[op]; count > 0 {
				fmt.Fprintf(w, "  %-22s %d\n", op.String()+":", count)
			}
		}
	}

	if len(stats.ResponseCodes) > 0 {
		codes := make([]ascs.ResponseCode, 0, len(stats.ResponseCodes))
		for c := range stats.ResponseCodes {
			codes = append(codes, c)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

		fmt.Fprintln(w)
		fmt.Fprintln(w, "ASE outcomes:")
		for _, c := range codes {
			fmt.Fprintf(w, "  %-34s %d\n", c.String()+":", stats.ResponseCodes[c])
		}
	}

	if len(stats.HandoverPhases) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Handover commits: %d\n", stats.Handovers)
		for p := log.HandoverVeto; p <= log.HandoverComplete; p++ {
			if count := stats.HandoverPhases[p]; count > 0 {
				fmt.Fprintf(w, "  %-15s %d\n", p.String()+":", count)
			}
		}
	}

	if stats.Failures > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failures: %d (%d errors)\n", stats.Failures, stats.Errors)
	}
}
