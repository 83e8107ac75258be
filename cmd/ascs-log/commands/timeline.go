package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

// timelineKey groups entries by connection and ASE. ASE 0 holds the
// connection's own lifecycle and handover steps.
type timelineKey struct {
	cid uint32
	ase uint8
}

type timelineEntry struct {
	at   time.Time
	text string
}

// Timeline is the per-ASE history of a capture.
type Timeline struct {
	entries map[timelineKey][]timelineEntry
	start   map[uint32]time.Time
	ase     *uint8
}

func newTimeline() *Timeline {
	return &Timeline{
		entries: make(map[timelineKey][]timelineEntry),
		start:   make(map[uint32]time.Time),
	}
}

func (tl *Timeline) add(e log.Event) {
	if e.ConnectionID == 0 {
		return
	}
	if _, ok := tl.start[e.ConnectionID]; !ok {
		tl.start[e.ConnectionID] = e.Timestamp
	}

	switch {
	case e.StateChange != nil:
		sc := e.StateChange
		key := timelineKey{cid: e.ConnectionID}
		switch sc.Entity {
		case log.StateEntityAse:
			if e.AseID == nil {
				return
			}
			key.ase = *e.AseID
		case log.StateEntityConnection:
		default:
			return
		}
		text := sc.OldState + " -> " + sc.NewState
		if sc.OldState == "" {
			text = "-> " + sc.NewState
		}
		if sc.Reason != "" {
			text += " (" + sc.Reason + ")"
		}
		tl.push(key, e.Timestamp, text)

	case e.Operation != nil && e.Layer == log.LayerControlPoint && e.Direction == log.DirectionOut:
		op := ascs.Opcode(e.Operation.Opcode)
		for _, r := range e.Operation.Results {
			text := op.String() + " " + ascs.ResponseCode(r.Code).String()
			if r.Reason != 0 {
				text += " (" + ascs.Reason(r.Reason).String() + ")"
			}
			tl.push(timelineKey{e.ConnectionID, r.AseID}, e.Timestamp, text)
		}

	case e.Handover != nil:
		text := "HANDOVER " + e.Handover.Phase.String()
		if o := outcome(e); o != "" {
			text += " " + o
		}
		tl.push(timelineKey{cid: e.ConnectionID}, e.Timestamp, text)

	case e.Error != nil:
		key := timelineKey{cid: e.ConnectionID}
		if e.AseID != nil {
			key.ase = *e.AseID
		}
		tl.push(key, e.Timestamp, "ERROR "+e.Error.Message)
	}
}

func (tl *Timeline) push(key timelineKey, at time.Time, text string) {
	if tl.ase != nil && key.ase != *tl.ase {
		return
	}
	tl.entries[key] = append(tl.entries[key], timelineEntry{at: at, text: text})
}

// write prints connections in id order, then each connection's ASEs in id
// order. Offsets are relative to the connection's first event.
func (tl *Timeline) write(w io.Writer) {
	keys := make([]timelineKey, 0, len(tl.entries))
	for k := range tl.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cid != keys[j].cid {
			return keys[i].cid < keys[j].cid
		}
		return keys[i].ase < keys[j].ase
	})

	var cid uint32
	for i, k := range keys {
		if i == 0 || k.cid != cid {
			cid = k.cid
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "Connection %d\n", cid)
		}
		if k.ase == 0 {
			fmt.Fprintln(w, "  connection")
		} else {
			fmt.Fprintf(w, "  ASE %d\n", k.ase)
		}
		for _, e := range tl.entries[k] {
			off := e.at.Sub(tl.start[k.cid])
			fmt.Fprintf(w, "    +%-10s %s\n", off.Round(time.Microsecond), e.text)
		}
	}
}

// RunTimeline prints the state transitions and operation outcomes of every
// ASE matching filter, grouped by connection.
func RunTimeline(path string, filter log.Filter, w io.Writer) error {
	tl := newTimeline()
	// Control Point notifications cover several ASEs and carry no ASE id of
	// their own, so the ASE selection is applied per entry instead.
	tl.ase, filter.AseID = filter.AseID, nil
	err := log.Scan(path, filter, func(event log.Event) error {
		tl.add(event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("timeline %s: %w", path, err)
	}
	tl.write(w)
	return nil
}
