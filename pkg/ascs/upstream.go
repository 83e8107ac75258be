package ascs

// Application is the layer above the ASE engine (the audio profile). It
// receives validated client operations and later answers them through the
// Server's response methods.
//
// Indicate is called synchronously from within the Server entry point that
// produced the indication. Implementations may call back into the Server
// from the same goroutine.
type Application interface {
	Indicate(ind Indication)
}

// CodecDefaults supplies the server side codec and QoS preferences for an
// ASE. The values back the Codec Configured characteristic value and the
// framing and presentation delay checks of ConfigureQos.
type CodecDefaults interface {
	// ServerCodecInfo returns false when no preferences are available.
	ServerCodecInfo(cid uint32, aseID uint8) (ServerCodecInfo, bool)
}

// Transport delivers attribute protocol traffic for the Server.
type Transport interface {
	// AccessResponse completes a read or write of handle. value is only
	// meaningful for successful reads.
	AccessResponse(cid uint32, handle uint16, result ATTResult, value []byte)

	// Notify sends a characteristic value notification.
	Notify(cid uint32, handle uint16, value []byte)
}

// Indication is a validated client operation forwarded to the Application.
type Indication interface {
	// ConnectionID returns the link the operation arrived on.
	ConnectionID() uint32
	// Op returns the Control Point opcode, or 0 for descriptor changes.
	Op() Opcode
}

// ConfigureCodecParams is one ASE record of a Config Codec operation.
type ConfigureCodecParams struct {
	AseID         uint8
	Direction     Direction
	TargetLatency uint8
	TargetPhy     uint8
	CodecID       CodecID
	Configuration []byte
}

// QosParams is one ASE record of a Config QoS operation.
type QosParams struct {
	AseID uint8
	Qos   QosConfig
}

// MetadataParams is one ASE record of an Enable or Update Metadata
// operation. CigID and CisID are filled from the cached QoS for Enable.
type MetadataParams struct {
	AseID    uint8
	CigID    uint8
	CisID    uint8
	Metadata []byte
}

// ConfigureCodecIndication carries a validated Config Codec operation.
type ConfigureCodecIndication struct {
	CID  uint32
	Ases []ConfigureCodecParams
}

// ConfigureQosIndication carries a validated Config QoS operation.
type ConfigureQosIndication struct {
	CID  uint32
	Ases []QosParams
}

// EnableIndication carries a validated Enable operation.
type EnableIndication struct {
	CID  uint32
	Ases []MetadataParams
}

// UpdateMetadataIndication carries a validated Update Metadata operation.
type UpdateMetadataIndication struct {
	CID  uint32
	Ases []MetadataParams
}

// GenericIndication carries Receiver Start Ready, Disable, Receiver Stop
// Ready and Release operations, which only name ASEs.
type GenericIndication struct {
	CID    uint32
	Opcode Opcode
	AseIDs []uint8
}

// CCCDChangeIndication reports a client descriptor write.
type CCCDChangeIndication struct {
	CID    uint32
	Handle uint16
	Value  CCCD

	// ConfigComplete is true once the client has written the Control Point
	// descriptor and every ASE descriptor.
	ConfigComplete bool
}

func (i *ConfigureCodecIndication) ConnectionID() uint32 { return i.CID }
func (i *ConfigureQosIndication) ConnectionID() uint32   { return i.CID }
func (i *EnableIndication) ConnectionID() uint32         { return i.CID }
func (i *UpdateMetadataIndication) ConnectionID() uint32 { return i.CID }
func (i *GenericIndication) ConnectionID() uint32        { return i.CID }
func (i *CCCDChangeIndication) ConnectionID() uint32     { return i.CID }

func (i *ConfigureCodecIndication) Op() Opcode { return OpConfigCodec }
func (i *ConfigureQosIndication) Op() Opcode   { return OpConfigQos }
func (i *EnableIndication) Op() Opcode         { return OpEnable }
func (i *UpdateMetadataIndication) Op() Opcode { return OpUpdateMetadata }
func (i *GenericIndication) Op() Opcode        { return i.Opcode }
func (i *CCCDChangeIndication) Op() Opcode     { return 0 }

// Compile-time interface satisfaction checks.
var (
	_ Indication = (*ConfigureCodecIndication)(nil)
	_ Indication = (*ConfigureQosIndication)(nil)
	_ Indication = (*EnableIndication)(nil)
	_ Indication = (*UpdateMetadataIndication)(nil)
	_ Indication = (*GenericIndication)(nil)
	_ Indication = (*CCCDChangeIndication)(nil)
)

// CodecResult answers one ASE of a Config Codec indication.
type CodecResult struct {
	Result AseResult
	Server ServerCodecInfo
}

// QosResult answers one ASE of a Config QoS indication.
type QosResult struct {
	Result AseResult
	Qos    QosConfig
}

// CodecRequest moves an ASE to Codec Configured on the server's initiative.
type CodecRequest struct {
	AseID         uint8
	CodecID       CodecID
	TargetLatency uint8
	TargetPhy     uint8
	Server        ServerCodecInfo
}

// ReleaseCompleteParams finishes the release of one ASE.
type ReleaseCompleteParams struct {
	AseID uint8

	// CacheCodec keeps the codec configuration and returns the ASE to Codec
	// Configured instead of Idle.
	CacheCodec bool

	// Server optionally replaces the cached codec configuration.
	Server *ServerCodecInfo
}

// NopApplication discards indications.
type NopApplication struct{}

// Indicate does nothing.
func (NopApplication) Indicate(Indication) {}

var _ Application = NopApplication{}
