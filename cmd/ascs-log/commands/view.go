package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

// eventLabel returns the short type label of an event.
func eventLabel(event log.Event) string {
	switch {
	case event.Access != nil:
		return event.Access.Type.String()
	case event.Notification != nil:
		return "NOTIFY"
	case event.Operation != nil:
		return ascs.Opcode(event.Operation.Opcode).String()
	case event.StateChange != nil:
		return "STATE"
	case event.Handover != nil:
		return event.Handover.Phase.String()
	case event.Error != nil:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// outcome summarizes how an event ended: the ATT result of an access, the
// first failing response code of an operation, or a handover step's result.
// Events without an outcome return "".
func outcome(event log.Event) string {
	switch {
	case event.Access != nil:
		return ascs.ATTResult(event.Access.Result).String()
	case event.Operation != nil:
		op := event.Operation
		if op.Aborted {
			return "ABORTED"
		}
		for _, r := range op.Results {
			if r.Code != 0 {
				return ascs.ResponseCode(r.Code).String()
			}
		}
		if len(op.Results) > 0 {
			return ascs.ResponseSuccess.String()
		}
	case event.Handover != nil:
		switch {
		case event.Handover.Vetoed:
			return "VETOED"
		case event.Handover.Phase == log.HandoverVeto:
			return "ALLOWED"
		case event.Handover.Done:
			return "DONE"
		}
	}
	return ""
}

const timeFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// timestamp [cid:n] DIRECTION LAYER label [outcome]
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [cid:%d] %-3s %s %s", ts, event.ConnectionID, event.Direction, event.Layer, eventLabel(event))
	if o := outcome(event); o != "" {
		fmt.Fprintf(w, " [%s]", o)
	}
	fmt.Fprintln(w)

	if event.Handle != 0 {
		fmt.Fprintf(w, "  Handle: 0x%04X\n", event.Handle)
	}
	if event.AseID != nil {
		fmt.Fprintf(w, "  ASE: %d\n", *event.AseID)
	}

	switch {
	case event.Access != nil:
		formatAccessDetails(w, event.Access)
	case event.Notification != nil:
		formatData(w, event.Notification.Data, event.Notification.Truncated)
	case event.Operation != nil:
		formatOperationDetails(w, event.Operation)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Handover != nil:
		formatHandoverDetails(w, event.Handover)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

func formatData(w io.Writer, data []byte, truncated bool) {
	if len(data) == 0 {
		return
	}
	fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(data))
	if truncated {
		fmt.Fprintf(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

// formatAccessDetails writes attribute access details.
func formatAccessDetails(w io.Writer, a *log.AccessEvent) {
	if a.Offset > 0 {
		fmt.Fprintf(w, "  Offset: %d\n", a.Offset)
	}
	formatData(w, a.Data, a.Truncated)
	fmt.Fprintf(w, "  Result: %s (0x%02X)\n", ascs.ATTResult(a.Result), a.Result)
}

// formatOperationDetails writes Control Point operation details.
func formatOperationDetails(w io.Writer, op *log.OperationEvent) {
	fmt.Fprintf(w, "  ASEs: %d\n", op.NumAses)
	if op.Aborted {
		fmt.Fprintln(w, "  Aborted")
	}
	if op.Forwarded {
		fmt.Fprintln(w, "  Forwarded to application")
	}
	for _, r := range op.Results {
		fmt.Fprintf(w, "  ASE %d: %s", r.AseID, ascs.ResponseCode(r.Code))
		if r.Reason != 0 {
			fmt.Fprintf(w, " (%s)", ascs.Reason(r.Reason))
		}
		fmt.Fprintln(w)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatHandoverDetails writes handover step details.
func formatHandoverDetails(w io.Writer, h *log.HandoverEvent) {
	switch h.Phase {
	case log.HandoverVeto:
		fmt.Fprintf(w, "  Vetoed: %t\n", h.Vetoed)
	case log.HandoverMarshal, log.HandoverUnmarshal:
		fmt.Fprintf(w, "  Bytes: %d", h.Bytes)
		if h.Done {
			fmt.Fprint(w, " (done)")
		}
		fmt.Fprintln(w)
	case log.HandoverCommit:
		fmt.Fprintf(w, "  New primary: %t\n", h.NewPrimary)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// RunView writes every event matching filter to w in a readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	err := log.Scan(path, filter, func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("view %s: %w", path, err)
	}
	return nil
}
