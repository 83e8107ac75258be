package log

import "time"

// Event represents a protocol log event captured by the ASCS server.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ServerID identifies the server instance (UUID).
	ServerID string `cbor:"2,keyasint,omitempty"`

	// ConnectionID is the ATT connection id (0 for server-wide events).
	ConnectionID uint32 `cbor:"3,keyasint"`

	// Direction indicates traffic flow relative to the server.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// Handle is the attribute handle involved, if any.
	Handle uint16 `cbor:"7,keyasint,omitempty"`

	// AseID is the endpoint involved, if any.
	AseID *uint8 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Access       *AccessEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Notification *NotificationEvent `cbor:"11,keyasint,omitempty"` // Transport layer
	Operation    *OperationEvent    `cbor:"12,keyasint,omitempty"` // Control Point
	StateChange  *StateChangeEvent  `cbor:"13,keyasint,omitempty"` // ASE/connection state
	Handover     *HandoverEvent     `cbor:"14,keyasint,omitempty"` // Handover exchange
	Error        *ErrorEventData    `cbor:"15,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of protocol traffic.
type Direction uint8

const (
	// DirectionIn indicates traffic from the client or application.
	DirectionIn Direction = 0
	// DirectionOut indicates traffic sent by the server.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the server captured the event.
type Layer uint8

const (
	// LayerTransport is attribute protocol access and notifications.
	LayerTransport Layer = 0
	// LayerControlPoint is decoded ASE Control Point operations.
	LayerControlPoint Layer = 1
	// LayerEngine is the ASE state machine and application exchange.
	LayerEngine Layer = 2
	// LayerHandover is peer state transfer.
	LayerHandover Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerControlPoint:
		return "CONTROL_POINT"
	case LayerEngine:
		return "ENGINE"
	case LayerHandover:
		return "HANDOVER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAccess indicates an attribute read or write.
	CategoryAccess Category = 0
	// CategoryNotification indicates an outgoing notification.
	CategoryNotification Category = 1
	// CategoryOperation indicates a Control Point operation or its outcome.
	CategoryOperation Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryHandover indicates a handover step.
	CategoryHandover Category = 4
	// CategoryError indicates an error event.
	CategoryError Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAccess:
		return "ACCESS"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryOperation:
		return "OPERATION"
	case CategoryState:
		return "STATE"
	case CategoryHandover:
		return "HANDOVER"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AccessType distinguishes reads from writes.
type AccessType uint8

const (
	// AccessRead is an attribute read.
	AccessRead AccessType = 0
	// AccessWrite is an attribute write.
	AccessWrite AccessType = 1
)

// String returns the access type name.
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// AccessEvent captures an attribute access and its result.
type AccessEvent struct {
	// Type of access.
	Type AccessType `cbor:"1,keyasint"`

	// Offset of a long read.
	Offset uint16 `cbor:"2,keyasint,omitempty"`

	// Data written by the client or returned by a read (may be truncated).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`

	// Result is the ATT result code sent back to the client.
	Result uint8 `cbor:"5,keyasint"`
}

// NotificationEvent captures a characteristic value notification.
type NotificationEvent struct {
	// Data is the notified value (may be truncated).
	Data []byte `cbor:"1,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"2,keyasint,omitempty"`
}

// OperationEvent captures a Control Point operation or the application's
// answer to it.
type OperationEvent struct {
	// Opcode of the operation.
	Opcode uint8 `cbor:"1,keyasint"`

	// Name is the opcode name.
	Name string `cbor:"2,keyasint,omitempty"`

	// NumAses is the ASE count declared or answered.
	NumAses uint8 `cbor:"3,keyasint"`

	// Aborted is set when the whole operation was rejected.
	Aborted bool `cbor:"4,keyasint,omitempty"`

	// Results holds the per-ASE outcomes.
	Results []OperationResult `cbor:"5,keyasint,omitempty"`

	// Forwarded is set when the operation was passed to the application.
	Forwarded bool `cbor:"6,keyasint,omitempty"`
}

// OperationResult is one per-ASE outcome.
type OperationResult struct {
	AseID  uint8 `cbor:"1,keyasint"`
	Code   uint8 `cbor:"2,keyasint"`
	Reason uint8 `cbor:"3,keyasint"`
}

// StateChangeEvent captures ASE and connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityAse indicates an ASE state change.
	StateEntityAse StateEntity = 0
	// StateEntityConnection indicates a connection was created or removed.
	StateEntityConnection StateEntity = 1
	// StateEntityDescriptor indicates a client descriptor change.
	StateEntityDescriptor StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityAse:
		return "ASE"
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDescriptor:
		return "DESCRIPTOR"
	default:
		return "UNKNOWN"
	}
}

// HandoverEvent captures one step of a handover exchange.
type HandoverEvent struct {
	// Phase of the exchange.
	Phase HandoverPhase `cbor:"1,keyasint"`

	// Bytes produced or consumed in this step.
	Bytes int `cbor:"2,keyasint,omitempty"`

	// Done is set when the step finished the aggregate.
	Done bool `cbor:"3,keyasint,omitempty"`

	// NewPrimary is the role passed to commit.
	NewPrimary bool `cbor:"4,keyasint,omitempty"`

	// Vetoed is the veto result.
	Vetoed bool `cbor:"5,keyasint,omitempty"`
}

// HandoverPhase identifies a handover step.
type HandoverPhase uint8

const (
	// HandoverVeto is the veto query.
	HandoverVeto HandoverPhase = 0
	// HandoverMarshal is one marshal window.
	HandoverMarshal HandoverPhase = 1
	// HandoverUnmarshal is one unmarshal window.
	HandoverUnmarshal HandoverPhase = 2
	// HandoverCommit is the role commit.
	HandoverCommit HandoverPhase = 3
	// HandoverAbort discards in-flight state.
	HandoverAbort HandoverPhase = 4
	// HandoverComplete finishes the exchange.
	HandoverComplete HandoverPhase = 5
)

// String returns the phase name.
func (h HandoverPhase) String() string {
	switch h {
	case HandoverVeto:
		return "VETO"
	case HandoverMarshal:
		return "MARSHAL"
	case HandoverUnmarshal:
		return "UNMARSHAL"
	case HandoverCommit:
		return "COMMIT"
	case HandoverAbort:
		return "ABORT"
	case HandoverComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// MaxLogDataSize is the maximum payload size recorded in access and
// notification events. Larger payloads are truncated.
const MaxLogDataSize = 512

// TruncateData returns data limited to MaxLogDataSize bytes and whether it
// was cut.
func TruncateData(data []byte) ([]byte, bool) {
	if len(data) <= MaxLogDataSize {
		return data, false
	}
	return data[:MaxLogDataSize], true
}

// Failed reports whether the event records something going wrong: an
// attribute access answered with an ATT error, an operation with an aborted
// or non-success ASE outcome, a vetoed handover, or an error.
func (e Event) Failed() bool {
	switch {
	case e.Error != nil:
		return true
	case e.Access != nil:
		return e.Access.Result != 0
	case e.Operation != nil:
		if e.Operation.Aborted {
			return true
		}
		for _, r := range e.Operation.Results {
			if r.Code != 0 {
				return true
			}
		}
	case e.Handover != nil:
		return e.Handover.Vetoed
	}
	return false
}
