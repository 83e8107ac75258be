package ascs

import (
	"errors"
	"fmt"

	"github.com/mash-protocol/ascs-go/pkg/cursor"
)

// Serialization errors.
var (
	// ErrMissingDynamicData means the ASE's state requires configuration
	// the ASE does not hold.
	ErrMissingDynamicData = errors.New("ase has no configuration for its state")

	// ErrNoCodecDefaults means the server side codec values are unavailable.
	ErrNoCodecDefaults = errors.New("codec defaults unavailable")

	// ErrMalformedValue is returned when parsing a truncated or oversized
	// characteristic value.
	ErrMalformedValue = errors.New("malformed ase value")
)

// Fixed sizes of the characteristic value shapes.
const (
	sizeIdle          = 2
	sizeCodecHeader   = 25
	sizeQosConfigured = 17
	sizeGenericHeader = 5
	codecPdMinOffset  = 7
)

// GetAseData returns the current characteristic value of an ASE.
func (s *Server) GetAseData(cid uint32, aseID uint8) ([]byte, error) {
	conn := s.registry.Find(cid)
	if conn == nil {
		return nil, ErrUnknownConnection
	}
	ase := conn.Ase(aseID)
	if ase == nil {
		return nil, ErrUnknownAse
	}
	return s.serialize(cid, ase, nil)
}

// serialize builds the characteristic value of an ASE for its state.
func (s *Server) serialize(cid uint32, ase *Ase, serverInfo *ServerCodecInfo) ([]byte, error) {
	switch ase.State {
	case StateIdle, StateReleasing:
		w := cursor.NewWriter(sizeIdle)
		w.Write8(ase.ID)
		w.Write8(uint8(ase.State))
		return w.Bytes(), nil

	case StateCodecConfigured:
		if ase.Dynamic == nil {
			return nil, ErrMissingDynamicData
		}
		info := serverInfo
		if info == nil {
			if s.defaults == nil {
				return nil, ErrNoCodecDefaults
			}
			d, ok := s.defaults.ServerCodecInfo(cid, ase.ID)
			if !ok {
				return nil, ErrNoCodecDefaults
			}
			info = &d
		}
		return serializeCodecConfigured(ase, info), nil

	case StateQosConfigured:
		if ase.Dynamic == nil || ase.Dynamic.Qos == nil {
			return nil, ErrMissingDynamicData
		}
		q := ase.Dynamic.Qos
		w := cursor.NewWriter(sizeQosConfigured)
		w.Write8(ase.ID)
		w.Write8(uint8(ase.State))
		w.Write8(q.CigID)
		w.Write8(q.CisID)
		w.Write24(q.SduInterval)
		w.Write8(q.Framing)
		w.Write8(q.Phy)
		w.Write16(q.MaxSdu)
		w.Write8(q.RetransmissionNumber)
		w.Write16(q.MaxTransportLatency)
		w.Write24(q.PresentationDelay)
		return w.Bytes(), nil

	case StateEnabling, StateStreaming, StateDisabling:
		if ase.Dynamic == nil || ase.Dynamic.Qos == nil {
			return nil, ErrMissingDynamicData
		}
		md := ase.Dynamic.Metadata
		w := cursor.NewWriter(sizeGenericHeader + len(md))
		w.Write8(ase.ID)
		w.Write8(uint8(ase.State))
		w.Write8(ase.Dynamic.Qos.CigID)
		w.Write8(ase.Dynamic.Qos.CisID)
		w.Write8(uint8(len(md)))
		w.WriteBytes(md)
		return w.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown ase state %d", ase.State)
}

func serializeCodecConfigured(ase *Ase, info *ServerCodecInfo) []byte {
	codec := &ase.Dynamic.Codec
	pdMin := codec.PresentationDelayMin
	pdMax := info.PresentationDelayMax
	if pdMax < pdMin {
		pdMax = pdMin
	}

	w := cursor.NewWriter(sizeCodecHeader + len(codec.Configuration))
	w.Write8(ase.ID)
	w.Write8(uint8(ase.State))
	w.Write8(info.Framing)
	w.Write8(info.PreferredPhy)
	w.Write8(info.PreferredRetransmissionNumber)
	w.Write16(info.MaxTransportLatency)
	w.Write24(pdMin)
	w.Write24(pdMax)
	w.Write24(info.PreferredPresentationDelayMin)
	w.Write24(info.PreferredPresentationDelayMax)
	w.Write8(codec.CodecID.CodingFormat)
	w.Write16(codec.CodecID.CompanyID)
	w.Write16(codec.CodecID.VendorCodecID)
	w.Write8(uint8(len(codec.Configuration)))
	w.WriteBytes(codec.Configuration)
	return w.Bytes()
}

func read24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// AseValue is a decoded ASE characteristic value. Which fields are set
// depends on State.
type AseValue struct {
	AseID uint8
	State AseState

	// Codec Configured.
	Server  *ServerCodecInfo
	CodecID CodecID

	// QoS Configured.
	Qos *QosConfig

	// Enabling, Streaming, Disabling.
	CigID    uint8
	CisID    uint8
	Metadata []byte
}

// ParseAseValue decodes an ASE characteristic value. For the Codec
// Configured shape, Server.PresentationDelayMin carries the advertised
// minimum and Server.Configuration the codec configuration bytes.
func ParseAseValue(b []byte) (*AseValue, error) {
	r := cursor.NewReader(b)
	v := &AseValue{AseID: r.Read8(), State: AseState(r.Read8())}

	switch v.State {
	case StateIdle, StateReleasing:
	case StateCodecConfigured:
		info := &ServerCodecInfo{}
		info.Framing = r.Read8()
		info.PreferredPhy = r.Read8()
		info.PreferredRetransmissionNumber = r.Read8()
		info.MaxTransportLatency = r.Read16()
		info.PresentationDelayMin = r.Read24()
		info.PresentationDelayMax = r.Read24()
		info.PreferredPresentationDelayMin = r.Read24()
		info.PreferredPresentationDelayMax = r.Read24()
		v.CodecID.CodingFormat = r.Read8()
		v.CodecID.CompanyID = r.Read16()
		v.CodecID.VendorCodecID = r.Read16()
		info.Configuration = r.ReadBytes(int(r.Read8()))
		v.Server = info
	case StateQosConfigured:
		q := &QosConfig{}
		q.CigID = r.Read8()
		q.CisID = r.Read8()
		q.SduInterval = r.Read24()
		q.Framing = r.Read8()
		q.Phy = r.Read8()
		q.MaxSdu = r.Read16()
		q.RetransmissionNumber = r.Read8()
		q.MaxTransportLatency = r.Read16()
		q.PresentationDelay = r.Read24()
		v.Qos = q
	case StateEnabling, StateStreaming, StateDisabling:
		v.CigID = r.Read8()
		v.CisID = r.Read8()
		v.Metadata = r.ReadBytes(int(r.Read8()))
	default:
		return nil, fmt.Errorf("%w: state %d", ErrMalformedValue, v.State)
	}

	if r.Overrun() || r.Remaining() != 0 {
		return nil, ErrMalformedValue
	}
	return v, nil
}
