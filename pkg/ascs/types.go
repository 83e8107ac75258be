package ascs

// AseState is the state of an Audio Stream Endpoint.
type AseState uint8

const (
	StateIdle            AseState = 0x00
	StateCodecConfigured AseState = 0x01
	StateQosConfigured   AseState = 0x02
	StateEnabling        AseState = 0x03
	StateStreaming       AseState = 0x04
	StateDisabling       AseState = 0x05
	StateReleasing       AseState = 0x06
)

// String returns the state name.
func (s AseState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCodecConfigured:
		return "CODEC_CONFIGURED"
	case StateQosConfigured:
		return "QOS_CONFIGURED"
	case StateEnabling:
		return "ENABLING"
	case StateStreaming:
		return "STREAMING"
	case StateDisabling:
		return "DISABLING"
	case StateReleasing:
		return "RELEASING"
	default:
		return "UNKNOWN"
	}
}

// IsTransient reports whether the state is one in which handover is unsafe.
func (s AseState) IsTransient() bool {
	return s == StateEnabling || s == StateDisabling || s == StateReleasing
}

// Opcode identifies an ASE Control Point operation.
type Opcode uint8

const (
	OpConfigCodec        Opcode = 0x01
	OpConfigQos          Opcode = 0x02
	OpEnable             Opcode = 0x03
	OpReceiverStartReady Opcode = 0x04
	OpDisable            Opcode = 0x05
	OpReceiverStopReady  Opcode = 0x06
	OpUpdateMetadata     Opcode = 0x07
	OpRelease            Opcode = 0x08
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpConfigCodec:
		return "CONFIG_CODEC"
	case OpConfigQos:
		return "CONFIG_QOS"
	case OpEnable:
		return "ENABLE"
	case OpReceiverStartReady:
		return "RECEIVER_START_READY"
	case OpDisable:
		return "DISABLE"
	case OpReceiverStopReady:
		return "RECEIVER_STOP_READY"
	case OpUpdateMetadata:
		return "UPDATE_METADATA"
	case OpRelease:
		return "RELEASE"
	default:
		return "UNKNOWN"
	}
}

// ResponseCode is the per-ASE outcome reported in a Control Point notification.
type ResponseCode uint8

const (
	ResponseSuccess                      ResponseCode = 0x00
	ResponseUnsupportedOpcode            ResponseCode = 0x01
	ResponseInvalidLength                ResponseCode = 0x02
	ResponseInvalidAseID                 ResponseCode = 0x03
	ResponseInvalidTransition            ResponseCode = 0x04
	ResponseInvalidDirection             ResponseCode = 0x05
	ResponseUnsupportedAudioCapabilities ResponseCode = 0x06
	ResponseUnsupportedConfigParam       ResponseCode = 0x07
	ResponseRejectedConfigParam          ResponseCode = 0x08
	ResponseInvalidConfigParam           ResponseCode = 0x09
	ResponseUnsupportedMetadata          ResponseCode = 0x0A
	ResponseRejectedMetadata             ResponseCode = 0x0B
	ResponseInvalidMetadata              ResponseCode = 0x0C
	ResponseInsufficientResources        ResponseCode = 0x0D
	ResponseUnspecifiedError             ResponseCode = 0x0E
)

// String returns the response code name.
func (c ResponseCode) String() string {
	switch c {
	case ResponseSuccess:
		return "SUCCESS"
	case ResponseUnsupportedOpcode:
		return "UNSUPPORTED_OPCODE"
	case ResponseInvalidLength:
		return "INVALID_LENGTH"
	case ResponseInvalidAseID:
		return "INVALID_ASE_ID"
	case ResponseInvalidTransition:
		return "INVALID_ASE_STATE_TRANSITION"
	case ResponseInvalidDirection:
		return "INVALID_ASE_DIRECTION"
	case ResponseUnsupportedAudioCapabilities:
		return "UNSUPPORTED_AUDIO_CAPABILITIES"
	case ResponseUnsupportedConfigParam:
		return "UNSUPPORTED_CONFIG_PARAMETER_VALUE"
	case ResponseRejectedConfigParam:
		return "REJECTED_CONFIG_PARAMETER_VALUE"
	case ResponseInvalidConfigParam:
		return "INVALID_CONFIG_PARAMETER_VALUE"
	case ResponseUnsupportedMetadata:
		return "UNSUPPORTED_METADATA"
	case ResponseRejectedMetadata:
		return "REJECTED_METADATA"
	case ResponseInvalidMetadata:
		return "INVALID_METADATA"
	case ResponseInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case ResponseUnspecifiedError:
		return "UNSPECIFIED_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Reason identifies the offending field of a rejected configuration.
type Reason uint8

const (
	ReasonNone                 Reason = 0x00
	ReasonCodecID              Reason = 0x01
	ReasonCodecConfiguration   Reason = 0x02
	ReasonSduInterval          Reason = 0x03
	ReasonFraming              Reason = 0x04
	ReasonPhy                  Reason = 0x05
	ReasonMaxSdu               Reason = 0x06
	ReasonRetransmissionNumber Reason = 0x07
	ReasonMaxTransportLatency  Reason = 0x08
	ReasonPresentationDelay    Reason = 0x09

	// ReasonInvalidAseCisMapping flags a ConfigureQos whose CIG/CIS pair is
	// already used by another ASE of the same direction. It is produced only
	// by the validator and never accepted from the application.
	ReasonInvalidAseCisMapping Reason = 0x0A
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonCodecID:
		return "CODEC_ID"
	case ReasonCodecConfiguration:
		return "CODEC_SPECIFIC_CONFIGURATION"
	case ReasonSduInterval:
		return "SDU_INTERVAL"
	case ReasonFraming:
		return "FRAMING"
	case ReasonPhy:
		return "PHY"
	case ReasonMaxSdu:
		return "MAXIMUM_SDU_SIZE"
	case ReasonRetransmissionNumber:
		return "RETRANSMISSION_NUMBER"
	case ReasonMaxTransportLatency:
		return "MAX_TRANSPORT_LATENCY"
	case ReasonPresentationDelay:
		return "PRESENTATION_DELAY"
	case ReasonInvalidAseCisMapping:
		return "INVALID_ASE_CIS_MAPPING"
	default:
		return "UNKNOWN"
	}
}

// Direction is the audio direction of an ASE from the server's point of view.
type Direction uint8

const (
	DirectionUninitialised Direction = 0x00
	DirectionSink          Direction = 0x01
	DirectionSource        Direction = 0x02
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionSink:
		return "SINK"
	case DirectionSource:
		return "SOURCE"
	default:
		return "UNINITIALISED"
	}
}

// DirectionOf returns the direction of the ASE with the given id.
// Odd ids are sink ASEs, even ids are source ASEs; id 0 has no direction.
func DirectionOf(aseID uint8) Direction {
	if aseID == 0 {
		return DirectionUninitialised
	}
	if aseID%2 == 1 {
		return DirectionSink
	}
	return DirectionSource
}

// CCCD is a Client Characteristic Configuration Descriptor value.
type CCCD uint16

const (
	CCCDNotSet   CCCD = 0x0000
	CCCDNotify   CCCD = 0x0001
	CCCDIndicate CCCD = 0x0002

	// CCCDNeverWritten marks a descriptor the client has not written since
	// the connection was created. It reads back as CCCDNotSet.
	CCCDNeverWritten CCCD = 0xFFFF
)

// String returns the descriptor value name.
func (c CCCD) String() string {
	switch c {
	case CCCDNotSet:
		return "NOT_SET"
	case CCCDNotify:
		return "NOTIFY"
	case CCCDIndicate:
		return "INDICATE"
	case CCCDNeverWritten:
		return "NEVER_WRITTEN"
	default:
		return "UNKNOWN"
	}
}

// valid reports whether c may be restored through AddConfig.
func (c CCCD) valid() bool {
	return c == CCCDNotSet || c == CCCDNotify || c == CCCDNeverWritten
}

// Protocol constants.
const (
	// InvalidConnectionID is never assigned to a live link.
	InvalidConnectionID uint32 = 0

	// AbortedAseCount replaces the ASE count of a Control Point notification
	// when the whole operation was rejected.
	AbortedAseCount = 0xFF

	// CodingFormatVendor is the vendor-specific coding format.
	CodingFormatVendor uint8 = 0xFF

	// MaxAseIDsPerCIS bounds ReadReleasingAseIDsByCIS results.
	MaxAseIDsPerCIS = 2
)

// Framing values.
const (
	FramingUnframed uint8 = 0x00
	FramingFramed   uint8 = 0x01
)

// PHY bits used in ConfigureQos and the server preferred PHY field.
const (
	Phy1M    uint8 = 0x01
	Phy2M    uint8 = 0x02
	PhyCoded uint8 = 0x04

	phyMask = Phy1M | Phy2M | PhyCoded
)

// Target latency and target PHY values carried in ConfigureCodec.
const (
	TargetLatencyLow      uint8 = 0x01
	TargetLatencyBalanced uint8 = 0x02
	TargetLatencyHigh     uint8 = 0x03
	TargetPhyLE1M         uint8 = 0x01
	TargetPhyLE2M         uint8 = 0x02
	TargetPhyLECoded      uint8 = 0x03
)

// CodecID identifies a codec.
type CodecID struct {
	CodingFormat  uint8
	CompanyID     uint16
	VendorCodecID uint16
}

// ServerCodecInfo holds the values the server reports in the Codec
// Configured state alongside the client's codec configuration.
type ServerCodecInfo struct {
	// Framing is FramingFramed when unframed ISOAL PDUs are not supported.
	Framing                       uint8
	PreferredPhy                  uint8
	PreferredRetransmissionNumber uint8
	MaxTransportLatency           uint16
	PresentationDelayMin          uint32
	PresentationDelayMax          uint32
	PreferredPresentationDelayMin uint32
	PreferredPresentationDelayMax uint32

	// Configuration is the codec specific configuration as LTV structures.
	Configuration []byte
}

// CodecConfig is the codec configuration cached for an ASE.
type CodecConfig struct {
	CodecID              CodecID
	TargetLatency        uint8
	TargetPhy            uint8
	PresentationDelayMin uint32
	Configuration        []byte
}

// QosConfig is the QoS configuration cached for an ASE.
type QosConfig struct {
	CigID                uint8
	CisID                uint8
	SduInterval          uint32
	Framing              uint8
	Phy                  uint8
	MaxSdu               uint16
	RetransmissionNumber uint8
	MaxTransportLatency  uint16
	PresentationDelay    uint32
}

// DynamicData is the configuration owned by an ASE outside the Idle state.
type DynamicData struct {
	Codec    CodecConfig
	Qos      *QosConfig
	Metadata []byte

	// qosPending is set while a client's Config QoS awaits the Application.
	// settledQos is the configuration held before that request.
	qosPending bool
	settledQos *QosConfig
}

// requestQos caches a requested QoS configuration until it is answered.
func (d *DynamicData) requestQos(q QosConfig) {
	if !d.qosPending {
		d.settledQos = d.Qos
		d.qosPending = true
	}
	d.Qos = &q
}

// settleQos ends a pending request. A nil accepted configuration restores
// the one held before the request.
func (d *DynamicData) settleQos(accepted *QosConfig) {
	switch {
	case accepted != nil:
		d.Qos = accepted
	case d.qosPending:
		d.Qos = d.settledQos
	}
	d.qosPending = false
	d.settledQos = nil
}

// Clone returns a deep copy of d.
func (d *DynamicData) Clone() *DynamicData {
	if d == nil {
		return nil
	}
	c := &DynamicData{
		Codec:    d.Codec,
		Metadata: cloneBytes(d.Metadata),
	}
	c.Codec.Configuration = cloneBytes(d.Codec.Configuration)
	if d.Qos != nil {
		q := *d.Qos
		c.Qos = &q
	}
	return c
}

// Ase is an Audio Stream Endpoint.
type Ase struct {
	ID      uint8
	State   AseState
	CCCD    CCCD
	Dynamic *DynamicData
}

// Direction returns the ASE direction.
func (a *Ase) Direction() Direction {
	return DirectionOf(a.ID)
}

// clone returns a deep copy of the ASE.
func (a Ase) clone() Ase {
	a.Dynamic = a.Dynamic.Clone()
	return a
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
