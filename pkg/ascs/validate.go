package ascs

// Field ranges for client supplied QoS parameters.
const (
	minSduInterval         = 0x0000FF
	maxSduInterval         = 0x0FFFFF
	maxMaxSdu              = 0x0FFF
	maxRetransmission      = 0xFF
	minMaxTransportLatency = 0x0005
	maxMaxTransportLatency = 0x0FA0
)

// legalOpcodes lists, per state, the opcodes a client may issue.
// Releasing accepts none; only the application's release-complete leaves it.
var legalOpcodes = map[AseState][]Opcode{
	StateIdle:            {OpConfigCodec},
	StateCodecConfigured: {OpConfigCodec, OpConfigQos, OpRelease},
	StateQosConfigured:   {OpConfigCodec, OpConfigQos, OpEnable, OpRelease},
	StateEnabling:        {OpUpdateMetadata, OpReceiverStartReady, OpDisable, OpRelease},
	StateStreaming:       {OpUpdateMetadata, OpDisable, OpRelease},
	StateDisabling:       {OpReceiverStopReady, OpRelease},
	StateReleasing:       {},
}

// IsLegal reports whether op may be applied to an ASE in state s.
func IsLegal(s AseState, op Opcode) bool {
	for _, o := range legalOpcodes[s] {
		if o == op {
			return true
		}
	}
	return false
}

// validator checks the per-ASE records of one Control Point operation and
// records every failure in the connection's aggregator.
type validator struct {
	conn     *Connection
	notify   *ControlPointNotify
	defaults CodecDefaults

	// claims are the CIS mappings accepted earlier in the same operation.
	claims []cisClaim
}

type cisClaim struct {
	aseID uint8
	dir   Direction
	cigID uint8
	cisID uint8
}

// cisTaken reports whether another ASE of the same direction already uses
// the CIG/CIS pair, either in its cached QoS or earlier in this operation.
func (v *validator) cisTaken(ase *Ase, cigID, cisID uint8) bool {
	if v.conn.findByCis(ase.Direction(), cigID, cisID, ase.ID) != nil {
		return true
	}
	for _, c := range v.claims {
		if c.aseID != ase.ID && c.dir == ase.Direction() && c.cigID == cigID && c.cisID == cisID {
			return true
		}
	}
	return false
}

func newValidator(conn *Connection, defaults CodecDefaults) *validator {
	return &validator{conn: conn, notify: conn.cpNotify, defaults: defaults}
}

// begin records the optimistic Success outcome and resolves the ASE.
func (v *validator) begin(aseID uint8) (*Ase, bool) {
	v.notify.Record(aseID, ResponseSuccess, ReasonNone)
	ase := v.conn.Ase(aseID)
	if ase == nil {
		v.notify.Record(aseID, ResponseInvalidAseID, ReasonNone)
		return nil, false
	}
	return ase, true
}

func (v *validator) transition(ase *Ase, op Opcode) bool {
	if !IsLegal(ase.State, op) {
		v.notify.Record(ase.ID, ResponseInvalidTransition, ReasonNone)
		return false
	}
	return true
}

func (v *validator) invalidIfOutside(aseID uint8, value, lo, hi uint32, reason Reason) bool {
	if value < lo || value > hi {
		v.notify.Record(aseID, ResponseInvalidConfigParam, reason)
		return false
	}
	return true
}

func (v *validator) rejectIfOutside(aseID uint8, value, lo, hi uint32, reason Reason) bool {
	if value < lo || value > hi {
		v.notify.Record(aseID, ResponseRejectedConfigParam, reason)
		return false
	}
	return true
}

// ltvs verifies that the LTV structures in b exactly cover b. A mismatch
// aborts the whole operation.
func (v *validator) ltvs(b []byte) bool {
	if !ValidLTV(b) {
		v.notify.MarkAborted(ResponseInvalidLength)
		return false
	}
	return true
}

// ValidLTV reports whether the length fields of the LTV structures in b add
// up to exactly len(b). Each length octet counts the type and value octets
// that follow it.
func ValidLTV(b []byte) bool {
	pos := 0
	for pos < len(b) {
		pos += int(b[pos]) + 1
	}
	return pos == len(b)
}

func (v *validator) configureCodec(p *ConfigureCodecParams) bool {
	ase, ok := v.begin(p.AseID)
	if !ok {
		return false
	}
	if !v.transition(ase, OpConfigCodec) {
		return false
	}
	if p.CodecID.CodingFormat != CodingFormatVendor &&
		(p.CodecID.CompanyID != 0 || p.CodecID.VendorCodecID != 0) {
		v.notify.Record(ase.ID, ResponseInvalidConfigParam, ReasonCodecID)
		return false
	}
	if p.TargetLatency < TargetLatencyLow || p.TargetLatency > TargetLatencyHigh {
		v.notify.Record(ase.ID, ResponseUnspecifiedError, ReasonNone)
		return false
	}
	if p.TargetPhy < TargetPhyLE1M || p.TargetPhy > TargetPhyLECoded {
		v.notify.Record(ase.ID, ResponseUnspecifiedError, ReasonNone)
		return false
	}
	return v.ltvs(p.Configuration)
}

func (v *validator) configureQos(p *QosParams) bool {
	ase, ok := v.begin(p.AseID)
	if !ok {
		return false
	}
	if !v.transition(ase, OpConfigQos) {
		return false
	}
	q := &p.Qos
	if !v.invalidIfOutside(ase.ID, q.SduInterval, minSduInterval, maxSduInterval, ReasonSduInterval) {
		return false
	}
	if v.cisTaken(ase, q.CigID, q.CisID) {
		v.notify.Record(ase.ID, ResponseInvalidConfigParam, ReasonInvalidAseCisMapping)
		return false
	}

	info, haveInfo := v.serverInfo(ase.ID)
	switch q.Framing {
	case FramingUnframed:
		if haveInfo && info.Framing == FramingFramed {
			v.notify.Record(ase.ID, ResponseInvalidConfigParam, ReasonFraming)
			return false
		}
	case FramingFramed:
	default:
		v.notify.Record(ase.ID, ResponseInvalidConfigParam, ReasonFraming)
		return false
	}

	if q.Phy == 0 || q.Phy&^phyMask != 0 {
		v.notify.Record(ase.ID, ResponseInvalidConfigParam, ReasonPhy)
		return false
	}
	if !v.invalidIfOutside(ase.ID, uint32(q.MaxSdu), 0, maxMaxSdu, ReasonMaxSdu) {
		return false
	}
	if !v.invalidIfOutside(ase.ID, uint32(q.RetransmissionNumber), 0, maxRetransmission, ReasonRetransmissionNumber) {
		return false
	}
	if !v.invalidIfOutside(ase.ID, uint32(q.MaxTransportLatency), minMaxTransportLatency, maxMaxTransportLatency, ReasonMaxTransportLatency) {
		return false
	}

	var pdMin uint32
	if ase.Dynamic != nil {
		pdMin = ase.Dynamic.Codec.PresentationDelayMin
	}
	pdMax := pdMin
	if haveInfo && info.PresentationDelayMax > pdMax {
		pdMax = info.PresentationDelayMax
	}
	if !v.rejectIfOutside(ase.ID, q.PresentationDelay, pdMin, pdMax, ReasonPresentationDelay) {
		return false
	}
	v.claims = append(v.claims, cisClaim{aseID: ase.ID, dir: ase.Direction(), cigID: q.CigID, cisID: q.CisID})
	return true
}

func (v *validator) metadata(op Opcode, p *MetadataParams) bool {
	ase, ok := v.begin(p.AseID)
	if !ok {
		return false
	}
	if !v.transition(ase, op) {
		return false
	}
	return v.ltvs(p.Metadata)
}

func (v *validator) generic(op Opcode, aseID uint8) bool {
	ase, ok := v.begin(aseID)
	if !ok {
		return false
	}
	return v.transition(ase, op)
}

func (v *validator) serverInfo(aseID uint8) (ServerCodecInfo, bool) {
	if v.defaults == nil {
		return ServerCodecInfo{}, false
	}
	return v.defaults.ServerCodecInfo(v.conn.cid, aseID)
}
