package ascs

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/mash-protocol/ascs-go/pkg/cursor"
	"github.com/mash-protocol/ascs-go/pkg/log"
)

// handleControlPointWrite decodes and validates one Control Point write.
//
// Valid ASE records are forwarded to the Application. When nothing can be
// forwarded the aggregated outcome is notified immediately; otherwise the
// notification is sent when the Application responds, or right away for
// the operations the engine completes on its own.
func (s *Server) handleControlPointWrite(conn *Connection, value []byte) {
	r := cursor.NewReader(value)
	op := Opcode(r.Read8())
	conn.cpNotify.Reset(op)

	if r.Overrun() {
		conn.cpNotify.MarkAborted(ResponseInvalidLength)
		s.notifyControlPoint(conn)
		return
	}

	switch op {
	case OpConfigCodec:
		s.controlPointConfigureCodec(conn, r)
	case OpConfigQos:
		s.controlPointConfigureQos(conn, r)
	case OpEnable, OpUpdateMetadata:
		s.controlPointMetadata(conn, op, r)
	case OpReceiverStartReady, OpDisable, OpReceiverStopReady, OpRelease:
		s.controlPointGeneric(conn, op, r)
	default:
		s.debugLog("unsupported control point opcode", "cid", conn.cid, "opcode", uint8(op))
		conn.cpNotify.MarkAborted(ResponseUnsupportedOpcode)
		s.notifyControlPoint(conn)
	}
}

// readAseCount reads the number of ASE records. An empty or oversized
// count aborts the operation.
func (s *Server) readAseCount(conn *Connection, r *cursor.Reader) (int, bool) {
	n := int(r.Read8())
	if r.Overrun() || n == 0 || n > conn.NumAses() {
		conn.cpNotify.MarkAborted(ResponseInvalidLength)
		s.notifyControlPoint(conn)
		return 0, false
	}
	return n, true
}

// finishDecode reports whether the decoded records may be forwarded. A
// short or overlong write replaces every outcome with an invalid length,
// and nothing of an aborted operation is forwarded.
func (s *Server) finishDecode(conn *Connection, r *cursor.Reader, valid, declared int) bool {
	malformed := r.Overrun() || r.Remaining() != 0
	if malformed {
		conn.cpNotify.MarkAborted(ResponseInvalidLength)
	}
	forward := !conn.cpNotify.Aborted() && valid > 0
	s.logOperation(conn, declared, forward)
	if !forward {
		s.notifyControlPoint(conn)
	}
	return forward
}

// firstSeen tracks the ASE ids of one operation. Repeated records for the
// same ASE are validated but forwarded once.
type firstSeen struct {
	ids mapset.Set
}

func newFirstSeen() *firstSeen {
	return &firstSeen{ids: mapset.NewSet()}
}

func (f *firstSeen) add(id uint8) bool {
	return f.ids.Add(id)
}

func (s *Server) controlPointConfigureCodec(conn *Connection, r *cursor.Reader) {
	n, ok := s.readAseCount(conn, r)
	if !ok {
		return
	}

	v := newValidator(conn, s.defaults)
	seen := newFirstSeen()
	valid := make([]ConfigureCodecParams, 0, n)
	for i := 0; i < n && !r.Overrun(); i++ {
		p := ConfigureCodecParams{AseID: r.Read8()}
		p.Direction = DirectionOf(p.AseID)
		p.TargetLatency = r.Read8()
		p.TargetPhy = r.Read8()
		p.CodecID.CodingFormat = r.Read8()
		p.CodecID.CompanyID = r.Read16()
		p.CodecID.VendorCodecID = r.Read16()
		p.Configuration = r.ReadBytes(int(r.Read8()))
		if r.Overrun() {
			break
		}
		if v.configureCodec(&p) && seen.add(p.AseID) {
			valid = append(valid, p)
		}
	}

	if !s.finishDecode(conn, r, len(valid), n) {
		return
	}

	for _, p := range valid {
		ase := conn.Ase(p.AseID)
		if ase.Dynamic == nil {
			ase.Dynamic = &DynamicData{}
		}
		ase.Dynamic.Codec.CodecID = p.CodecID
		ase.Dynamic.Codec.TargetLatency = p.TargetLatency
		ase.Dynamic.Codec.TargetPhy = p.TargetPhy
	}
	s.app.Indicate(&ConfigureCodecIndication{CID: conn.cid, Ases: valid})
}

func (s *Server) controlPointConfigureQos(conn *Connection, r *cursor.Reader) {
	n, ok := s.readAseCount(conn, r)
	if !ok {
		return
	}

	v := newValidator(conn, s.defaults)
	seen := newFirstSeen()
	valid := make([]QosParams, 0, n)
	for i := 0; i < n && !r.Overrun(); i++ {
		p := QosParams{AseID: r.Read8()}
		p.Qos.CigID = r.Read8()
		p.Qos.CisID = r.Read8()
		p.Qos.SduInterval = r.Read24()
		p.Qos.Framing = r.Read8()
		p.Qos.Phy = r.Read8()
		p.Qos.MaxSdu = r.Read16()
		p.Qos.RetransmissionNumber = r.Read8()
		p.Qos.MaxTransportLatency = r.Read16()
		p.Qos.PresentationDelay = r.Read24()
		if r.Overrun() {
			break
		}
		if v.configureQos(&p) && seen.add(p.AseID) {
			valid = append(valid, p)
		}
	}

	if !s.finishDecode(conn, r, len(valid), n) {
		return
	}

	// The requested CIG/CIS pair is cached now so a later operation on
	// another ASE sees the mapping before the Application answers.
	for _, p := range valid {
		ase := conn.Ase(p.AseID)
		if ase.Dynamic != nil {
			ase.Dynamic.requestQos(p.Qos)
		}
	}
	s.app.Indicate(&ConfigureQosIndication{CID: conn.cid, Ases: valid})
}

func (s *Server) controlPointMetadata(conn *Connection, op Opcode, r *cursor.Reader) {
	n, ok := s.readAseCount(conn, r)
	if !ok {
		return
	}

	v := newValidator(conn, s.defaults)
	seen := newFirstSeen()
	valid := make([]MetadataParams, 0, n)
	for i := 0; i < n && !r.Overrun(); i++ {
		p := MetadataParams{AseID: r.Read8()}
		p.Metadata = r.ReadBytes(int(r.Read8()))
		if r.Overrun() {
			break
		}
		if v.metadata(op, &p) && seen.add(p.AseID) {
			valid = append(valid, p)
		}
	}

	if !s.finishDecode(conn, r, len(valid), n) {
		return
	}

	for i := range valid {
		p := &valid[i]
		ase := conn.Ase(p.AseID)
		if ase.Dynamic == nil {
			continue
		}
		ase.Dynamic.Metadata = cloneBytes(p.Metadata)
		if ase.Dynamic.Qos != nil {
			p.CigID = ase.Dynamic.Qos.CigID
			p.CisID = ase.Dynamic.Qos.CisID
		}
	}

	if op == OpEnable {
		s.app.Indicate(&EnableIndication{CID: conn.cid, Ases: valid})
	} else {
		s.app.Indicate(&UpdateMetadataIndication{CID: conn.cid, Ases: valid})
	}
}

func (s *Server) controlPointGeneric(conn *Connection, op Opcode, r *cursor.Reader) {
	n, ok := s.readAseCount(conn, r)
	if !ok {
		return
	}

	v := newValidator(conn, s.defaults)
	seen := newFirstSeen()
	valid := make([]uint8, 0, n)
	for i := 0; i < n && !r.Overrun(); i++ {
		id := r.Read8()
		if r.Overrun() {
			break
		}
		if v.generic(op, id) && seen.add(id) {
			valid = append(valid, id)
		}
	}

	if !s.finishDecode(conn, r, len(valid), n) {
		return
	}

	s.app.Indicate(&GenericIndication{CID: conn.cid, Opcode: op, AseIDs: valid})

	switch op {
	case OpRelease:
		s.notifyControlPoint(conn)
		for _, id := range valid {
			s.setState(conn.cid, conn.Ase(id), StateReleasing, nil)
		}
	case OpDisable:
		s.notifyControlPoint(conn)
		for _, id := range valid {
			ase := conn.Ase(id)
			if ase.Direction() == DirectionSink {
				s.setState(conn.cid, ase, StateQosConfigured, nil)
			} else {
				s.setState(conn.cid, ase, StateDisabling, nil)
			}
		}
	case OpReceiverStartReady:
		s.notifyControlPoint(conn)
		for _, id := range valid {
			ase := conn.Ase(id)
			if ase.Direction() == DirectionSink {
				s.setState(conn.cid, ase, StateStreaming, nil)
			}
		}
	}
}

func (s *Server) logOperation(conn *Connection, declared int, forwarded bool) {
	op := conn.cpNotify.Opcode()
	s.logEvent(log.Event{
		ConnectionID: conn.cid,
		Direction:    log.DirectionIn,
		Layer:        log.LayerControlPoint,
		Category:     log.CategoryOperation,
		Operation: &log.OperationEvent{
			Opcode:    uint8(op),
			Name:      op.String(),
			NumAses:   uint8(declared),
			Aborted:   conn.cpNotify.Aborted(),
			Forwarded: forwarded,
		},
	})
}
