package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// exportRecord is the flat form of an event shared by the JSONL and CSV
// exports.
type exportRecord struct {
	Time       string `json:"time"`
	Server     string `json:"server,omitempty"`
	Connection uint32 `json:"connection"`
	Ase        *uint8 `json:"ase,omitempty"`
	Direction  string `json:"direction"`
	Layer      string `json:"layer"`
	Category   string `json:"category"`
	Handle     string `json:"handle,omitempty"`
	Kind       string `json:"kind"`
	Outcome    string `json:"outcome,omitempty"`
	Failed     bool   `json:"failed,omitempty"`
	Data       string `json:"data,omitempty"`
}

var csvHeader = []string{"time", "server", "connection", "ase", "direction", "layer", "category", "handle", "kind", "outcome", "failed", "data"}

func newExportRecord(e log.Event) exportRecord {
	r := exportRecord{
		Time:       e.Timestamp.UTC().Format(timeFormat),
		Server:     e.ServerID,
		Connection: e.ConnectionID,
		Ase:        e.AseID,
		Direction:  e.Direction.String(),
		Layer:      e.Layer.String(),
		Category:   e.Category.String(),
		Kind:       eventLabel(e),
		Outcome:    outcome(e),
		Failed:     e.Failed(),
	}
	if e.Handle != 0 {
		r.Handle = fmt.Sprintf("0x%04X", e.Handle)
	}
	switch {
	case e.Access != nil:
		r.Data = hex.EncodeToString(e.Access.Data)
	case e.Notification != nil:
		r.Data = hex.EncodeToString(e.Notification.Data)
	case e.StateChange != nil:
		r.Data = e.StateChange.NewState
	case e.Error != nil:
		r.Data = e.Error.Message
	}
	return r
}

func (r exportRecord) row() []string {
	ase := ""
	if r.Ase != nil {
		ase = strconv.Itoa(int(*r.Ase))
	}
	return []string{
		r.Time,
		r.Server,
		strconv.FormatUint(uint64(r.Connection), 10),
		ase,
		r.Direction,
		r.Layer,
		r.Category,
		r.Handle,
		r.Kind,
		r.Outcome,
		strconv.FormatBool(r.Failed),
		r.Data,
	}
}

// RunExport writes the events of path matching filter to w as JSON lines
// ("jsonl") or CSV ("csv").
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	var emit func(exportRecord) error
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		emit = func(r exportRecord) error { return enc.Encode(r) }
	case "csv":
		cw := csv.NewWriter(w)
		defer cw.Flush()
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		emit = func(r exportRecord) error { return cw.Write(r.row()) }
	default:
		return fmt.Errorf("unknown format %q (jsonl or csv)", format)
	}

	err := log.Scan(path, filter, func(event log.Event) error {
		return emit(newExportRecord(event))
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
