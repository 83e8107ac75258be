package wire

import (
	"errors"
	"fmt"
)

// Handover record errors.
var (
	ErrNoAses         = errors.New("handover record has no ASEs")
	ErrInvalidAseID   = errors.New("invalid ASE id")
	ErrInvalidState   = errors.New("invalid ASE state")
	ErrDynamicMissing = errors.New("non-idle ASE without dynamic data")
	ErrDynamicIdle    = errors.New("idle ASE with dynamic data")
	ErrQosMissing     = errors.New("ASE without QoS configuration for its state")
)

const (
	// ASE state values carried by a record.
	stateIdle      = 0x00
	stateQosConfig = 0x02
	stateDisabling = 0x05
	maxAseState    = 0x06

	// maxRecordAses bounds the ASE slots a decoded record may carry.
	maxRecordAses = 255
)

// HandoverConnection is the transferable state of one connection.
type HandoverConnection struct {
	CID              uint32        `cbor:"1,keyasint"`
	ControlPointCCCD uint16        `cbor:"2,keyasint"`
	Ases             []HandoverAse `cbor:"3,keyasint"`
}

// HandoverAse is the transferable state of one ASE slot.
type HandoverAse struct {
	ID      uint8            `cbor:"1,keyasint"`
	State   uint8            `cbor:"2,keyasint"`
	CCCD    uint16           `cbor:"3,keyasint"`
	Dynamic *HandoverDynamic `cbor:"4,keyasint,omitempty"`
}

// HandoverDynamic is the configuration held by a non-Idle ASE.
type HandoverDynamic struct {
	Codec    HandoverCodec `cbor:"1,keyasint"`
	Qos      *HandoverQos  `cbor:"2,keyasint,omitempty"`
	Metadata []byte        `cbor:"3,keyasint,omitempty"`
}

// HandoverCodec is a cached codec configuration.
type HandoverCodec struct {
	CodingFormat         uint8  `cbor:"1,keyasint"`
	CompanyID            uint16 `cbor:"2,keyasint"`
	VendorCodecID        uint16 `cbor:"3,keyasint"`
	TargetLatency        uint8  `cbor:"4,keyasint"`
	TargetPhy            uint8  `cbor:"5,keyasint"`
	PresentationDelayMin uint32 `cbor:"6,keyasint"`
	Configuration        []byte `cbor:"7,keyasint,omitempty"`
}

// HandoverQos is a cached QoS configuration.
type HandoverQos struct {
	CigID                uint8  `cbor:"1,keyasint"`
	CisID                uint8  `cbor:"2,keyasint"`
	SduInterval          uint32 `cbor:"3,keyasint"`
	Framing              uint8  `cbor:"4,keyasint"`
	Phy                  uint8  `cbor:"5,keyasint"`
	MaxSdu               uint16 `cbor:"6,keyasint"`
	RetransmissionNumber uint8  `cbor:"7,keyasint"`
	MaxTransportLatency  uint16 `cbor:"8,keyasint"`
	PresentationDelay    uint32 `cbor:"9,keyasint"`
}

// Validate checks the structural invariants of the record. Slot i must
// hold ASE id i+1, and every state from QoS Configured through Disabling
// must carry a QoS configuration.
func (c *HandoverConnection) Validate() error {
	if len(c.Ases) == 0 {
		return ErrNoAses
	}
	for i, a := range c.Ases {
		if int(a.ID) != i+1 {
			return fmt.Errorf("ase slot %d: %w: %d", i, ErrInvalidAseID, a.ID)
		}
		if a.State > maxAseState {
			return fmt.Errorf("ase %d: %w: %d", a.ID, ErrInvalidState, a.State)
		}
		if a.State == stateIdle && a.Dynamic != nil {
			return fmt.Errorf("ase %d: %w", a.ID, ErrDynamicIdle)
		}
		if a.State != stateIdle && a.Dynamic == nil {
			return fmt.Errorf("ase %d: %w", a.ID, ErrDynamicMissing)
		}
		if a.State >= stateQosConfig && a.State <= stateDisabling && a.Dynamic.Qos == nil {
			return fmt.Errorf("ase %d: %w", a.ID, ErrQosMissing)
		}
	}
	return nil
}

// EncodeHandover encodes a handover record to CBOR bytes.
func EncodeHandover(c *HandoverConnection) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handover record: %w", err)
	}
	return Marshal(c)
}

// DecodeHandover decodes the first handover record in data and returns the
// bytes following it. A truncated record yields an error wrapping
// io.ErrUnexpectedEOF.
func DecodeHandover(data []byte) (*HandoverConnection, []byte, error) {
	var c HandoverConnection
	rest, err := UnmarshalFirst(data, &c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode handover record: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid handover record: %w", err)
	}
	return &c, rest, nil
}
