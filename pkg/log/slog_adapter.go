package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.Uint64("conn_id", uint64(event.ConnectionID)),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.ServerID != "" {
		attrs = append(attrs, slog.String("server_id", event.ServerID))
	}
	if event.Handle != 0 {
		attrs = append(attrs, slog.Uint64("handle", uint64(event.Handle)))
	}
	if event.AseID != nil {
		attrs = append(attrs, slog.Uint64("ase_id", uint64(*event.AseID)))
	}

	// Add type-specific attributes
	switch {
	case event.Access != nil:
		attrs = append(attrs,
			slog.String("access", event.Access.Type.String()),
			slog.Int("size", len(event.Access.Data)),
			slog.Uint64("att_result", uint64(event.Access.Result)),
		)
		if event.Access.Offset != 0 {
			attrs = append(attrs, slog.Uint64("offset", uint64(event.Access.Offset)))
		}
	case event.Notification != nil:
		attrs = append(attrs,
			slog.Int("size", len(event.Notification.Data)),
			slog.Bool("truncated", event.Notification.Truncated),
		)
	case event.Operation != nil:
		attrs = append(attrs,
			slog.String("opcode", event.Operation.Name),
			slog.Uint64("num_ases", uint64(event.Operation.NumAses)),
		)
		if event.Operation.Aborted {
			attrs = append(attrs, slog.Bool("aborted", true))
		}
		if event.Operation.Forwarded {
			attrs = append(attrs, slog.Bool("forwarded", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Handover != nil:
		attrs = append(attrs,
			slog.String("phase", event.Handover.Phase.String()),
			slog.Int("bytes", event.Handover.Bytes),
			slog.Bool("done", event.Handover.Done),
		)
		if event.Handover.Phase == HandoverVeto {
			attrs = append(attrs, slog.Bool("vetoed", event.Handover.Vetoed))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
