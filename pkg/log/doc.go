// Package log provides structured protocol logging for the ASCS server.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at several layers (attribute transport, Control
// Point, ASE engine, handover). It is separate from operational logging
// (slog) - protocol capture provides a complete machine-readable event
// trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/ascs/server.alog")
//
//	// Both
//	cfg.ProtocolLogger = log.Tee(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: attribute reads/writes (AccessEvent) and notifications
//     (NotificationEvent)
//   - Control Point: decoded operations and their outcomes (OperationEvent)
//   - Engine: ASE state transitions (StateChangeEvent)
//   - Handover: marshal/unmarshal/commit steps (HandoverEvent)
//
// Errors have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .alog extension. The ascs-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
