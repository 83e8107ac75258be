// Package commands implements the ascs-log CLI commands.
package commands

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

// Query selects events from a capture. Every command registers the same
// flags, so a selection that works for view also works for export, stats
// and timeline.
type Query struct {
	Conn      string
	Server    string
	Ase       string
	Opcode    string
	Phase     string
	Layer     string
	Direction string
	Category  string
	Since     string
	Until     string
	Failures  bool
}

// Register binds the query flags to fs.
func (q *Query) Register(fs *flag.FlagSet) {
	fs.StringVar(&q.Conn, "conn", "", "Connection id")
	fs.StringVar(&q.Server, "server", "", "Server instance id")
	fs.StringVar(&q.Ase, "ase", "", "ASE id")
	fs.StringVar(&q.Opcode, "opcode", "", "Control Point opcode, by name (enable, config-qos) or number")
	fs.StringVar(&q.Phase, "phase", "", "Handover phase (veto, marshal, unmarshal, commit, abort, complete)")
	fs.StringVar(&q.Layer, "layer", "", "Capture layer (transport, cp, engine, handover)")
	fs.StringVar(&q.Direction, "direction", "", "Traffic direction (in, out)")
	fs.StringVar(&q.Category, "category", "", "Event category (access, notification, operation, state, handover, error)")
	fs.StringVar(&q.Since, "since", "", "Keep events at or after this time (RFC3339)")
	fs.StringVar(&q.Until, "until", "", "Keep events before this time (RFC3339)")
	fs.BoolVar(&q.Failures, "failures", false, "Keep only rejected accesses and operations, vetoes and errors")
}

// Filter converts the query into a log.Filter.
func (q *Query) Filter() (log.Filter, error) {
	f := log.Filter{ServerID: q.Server, FailuresOnly: q.Failures}

	if q.Conn != "" {
		v, err := strconv.ParseUint(q.Conn, 0, 32)
		if err != nil {
			return f, fmt.Errorf("invalid conn %q: %w", q.Conn, err)
		}
		cid := uint32(v)
		f.ConnectionID = &cid
	}
	if q.Ase != "" {
		v, err := strconv.ParseUint(q.Ase, 0, 8)
		if err != nil || v == 0 {
			return f, fmt.Errorf("invalid ase %q: ASE ids run from 1 to 255", q.Ase)
		}
		id := uint8(v)
		f.AseID = &id
	}
	if q.Opcode != "" {
		op, err := parseOpcode(q.Opcode)
		if err != nil {
			return f, err
		}
		f.Opcode = &op
	}

	var err error
	if f.Phase, err = lookup("phase", q.Phase, log.HandoverComplete, nil); err != nil {
		return f, err
	}
	if f.Layer, err = lookup("layer", q.Layer, log.LayerHandover, map[string]log.Layer{"cp": log.LayerControlPoint}); err != nil {
		return f, err
	}
	if f.Direction, err = lookup("direction", q.Direction, log.DirectionOut, nil); err != nil {
		return f, err
	}
	if f.Category, err = lookup("category", q.Category, log.CategoryError, map[string]log.Category{"notify": log.CategoryNotification, "op": log.CategoryOperation}); err != nil {
		return f, err
	}
	if f.TimeStart, err = parseTime("since", q.Since); err != nil {
		return f, err
	}
	if f.TimeEnd, err = parseTime("until", q.Until); err != nil {
		return f, err
	}
	return f, nil
}

// parseOpcode accepts an opcode number or its name in any case, with
// dashes or underscores.
func parseOpcode(s string) (uint8, error) {
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		if ascs.Opcode(v).String() == "UNKNOWN" {
			return 0, fmt.Errorf("invalid opcode %q", s)
		}
		return uint8(v), nil
	}
	op, err := lookup("opcode", s, ascs.OpRelease, nil)
	if err != nil {
		return 0, err
	}
	return uint8(*op), nil
}

// enum is a byte-sized enumeration whose unnamed values print as UNKNOWN.
type enum interface {
	~uint8
	String() string
}

// lookup resolves a flag value against the String names of the values
// 0..last of an enumeration. An empty value selects nothing.
func lookup[T enum](flagName, s string, last T, aliases map[string]T) (*T, error) {
	if s == "" {
		return nil, nil
	}
	key := strings.ToLower(strings.ReplaceAll(s, "-", "_"))
	if v, ok := aliases[key]; ok {
		return &v, nil
	}
	names := make([]string, 0, int(last)+1)
	for v := T(0); ; v++ {
		name := v.String()
		if name != "UNKNOWN" {
			if strings.ToLower(name) == key {
				return &v, nil
			}
			names = append(names, strings.ToLower(name))
		}
		if v == last {
			break
		}
	}
	return nil, fmt.Errorf("invalid %s %q (one of %s)", flagName, s, strings.Join(names, ", "))
}

func parseTime(flagName, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flagName, err)
	}
	return &t, nil
}
