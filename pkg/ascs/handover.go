package ascs

import (
	"errors"
	"fmt"
	"io"

	"github.com/mash-protocol/ascs-go/pkg/log"
	"github.com/mash-protocol/ascs-go/pkg/wire"
)

// ErrHandoverMismatch is returned by Unmarshal when a record names a
// different connection than the one being transferred, or carries a
// different number of ASEs than the server exposes.
var ErrHandoverMismatch = errors.New("handover record for another connection")

// handoverState is the in-flight data of one handover exchange.
type handoverState struct {
	// outgoing holds the encoded record per connection and how much of it
	// has been handed out.
	outgoing map[uint32]*handoverBuffer

	// incoming accumulates partial records per connection.
	incoming map[uint32][]byte

	// pending holds connections rebuilt by Unmarshal awaiting Commit.
	pending map[uint32]*Connection
}

type handoverBuffer struct {
	data []byte
	off  int
}

func (h *handoverState) reset() {
	h.outgoing = nil
	h.incoming = nil
	for _, c := range h.pending {
		c.release()
	}
	h.pending = nil
}

// Handover transfers connection state to and from a peer server, such as
// the other device of a stereo pair.
//
// The exchange is driven by the caller: Veto, then Marshal on the old
// primary and Unmarshal on the new one, then Commit on both, then Complete.
// Abort discards everything in flight at any point.
type Handover struct {
	s *Server
}

// Handover returns the handover interface of the server.
func (s *Server) Handover() Handover {
	return Handover{s: s}
}

// Veto reports whether handover must be refused because an ASE on any
// connection is in a transient state.
func (h Handover) Veto() bool {
	vetoed := false
	for _, c := range h.s.registry.conns {
		for _, a := range c.ases {
			if a.State.IsTransient() {
				vetoed = true
				break
			}
		}
	}
	h.s.debugLog("handover veto", "vetoed", vetoed)
	h.s.logHandover(0, &log.HandoverEvent{Phase: log.HandoverVeto, Vetoed: vetoed})
	return vetoed
}

// Marshal writes the next part of the connection's handover record into
// buf and returns the number of bytes written. done is true once the whole
// record has been produced; a connection the server does not hold is done
// immediately.
func (h Handover) Marshal(cid uint32, buf []byte) (done bool, n int) {
	st := &h.s.handover
	out, ok := st.outgoing[cid]
	if !ok {
		conn := h.s.registry.Find(cid)
		if conn == nil {
			return true, 0
		}
		data, err := wire.EncodeHandover(toHandover(conn))
		if err != nil {
			panic(fmt.Sprintf("ascs: cannot encode connection %d for handover: %v", cid, err))
		}
		if st.outgoing == nil {
			st.outgoing = make(map[uint32]*handoverBuffer)
		}
		out = &handoverBuffer{data: data}
		st.outgoing[cid] = out
	}

	n = copy(buf, out.data[out.off:])
	out.off += n
	done = out.off == len(out.data)
	if done {
		delete(st.outgoing, cid)
	}
	h.s.logHandover(cid, &log.HandoverEvent{Phase: log.HandoverMarshal, Bytes: n, Done: done})
	return done, n
}

// Unmarshal consumes the next part of a handover record for cid and
// returns how many bytes of data it used. Once the record is complete the
// rebuilt connection is held until Commit.
func (h Handover) Unmarshal(cid uint32, data []byte) (done bool, n int, err error) {
	st := &h.s.handover
	buf := append(st.incoming[cid], data...)

	rec, rest, err := wire.DecodeHandover(buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		if st.incoming == nil {
			st.incoming = make(map[uint32][]byte)
		}
		st.incoming[cid] = buf
		h.s.logHandover(cid, &log.HandoverEvent{Phase: log.HandoverUnmarshal, Bytes: len(data)})
		return false, len(data), nil
	}
	delete(st.incoming, cid)
	if err != nil {
		h.s.logError(cid, log.LayerHandover, 0, err.Error(), "unmarshal")
		return false, 0, err
	}
	if rec.CID != cid {
		return false, 0, fmt.Errorf("%w: got %d, want %d", ErrHandoverMismatch, rec.CID, cid)
	}
	if len(rec.Ases) != h.s.config.MaxAses {
		err := fmt.Errorf("%w: %w: got %d, want %d", ErrHandoverMismatch, ErrAseCountMismatch, len(rec.Ases), h.s.config.MaxAses)
		h.s.logError(cid, log.LayerHandover, 0, err.Error(), "unmarshal")
		return false, 0, err
	}

	conn := h.s.fromHandover(rec)
	if st.pending == nil {
		st.pending = make(map[uint32]*Connection)
	}
	if old := st.pending[cid]; old != nil {
		old.release()
	}
	st.pending[cid] = conn

	n = len(data) - len(rest)
	h.s.logHandover(cid, &log.HandoverEvent{Phase: log.HandoverUnmarshal, Bytes: n, Done: true})
	return true, n, nil
}

// Commit switches the role of the server for cid. The new primary adopts
// the connection rebuilt by Unmarshal; if the registry cannot hold it the
// connection is destroyed and ErrRegistryFull returned. The new secondary
// drops its own connection.
func (h Handover) Commit(cid uint32, newPrimary bool) error {
	s := h.s
	s.logHandover(cid, &log.HandoverEvent{Phase: log.HandoverCommit, NewPrimary: newPrimary})

	if !newPrimary {
		s.registry.Remove(cid)
		s.logConnection(cid, "CONNECTED", "HANDED_OVER", "secondary")
		return nil
	}

	conn := s.handover.pending[cid]
	if conn == nil {
		return nil
	}
	delete(s.handover.pending, cid)
	if err := s.registry.adopt(conn); err != nil {
		conn.release()
		s.logError(cid, log.LayerHandover, 0, err.Error(), "commit")
		return err
	}
	s.debugLog("handover connection adopted", "cid", cid)
	s.logConnection(cid, "", "CONNECTED", "handover")
	return nil
}

// Abort discards all in-flight handover data.
func (h Handover) Abort() {
	h.s.handover.reset()
	h.s.logHandover(0, &log.HandoverEvent{Phase: log.HandoverAbort})
}

// Complete ends the exchange. Anything not committed is discarded.
func (h Handover) Complete() {
	h.s.handover.reset()
	h.s.logHandover(0, &log.HandoverEvent{Phase: log.HandoverComplete})
}

func toHandover(c *Connection) *wire.HandoverConnection {
	rec := &wire.HandoverConnection{
		CID:              c.cid,
		ControlPointCCCD: uint16(c.cpCCCD),
		Ases:             make([]wire.HandoverAse, len(c.ases)),
	}
	for i, a := range c.ases {
		rec.Ases[i] = wire.HandoverAse{
			ID:    a.ID,
			State: uint8(a.State),
			CCCD:  uint16(a.CCCD),
		}
		if a.Dynamic == nil || a.State == StateIdle {
			continue
		}
		d := &wire.HandoverDynamic{
			Codec: wire.HandoverCodec{
				CodingFormat:         a.Dynamic.Codec.CodecID.CodingFormat,
				CompanyID:            a.Dynamic.Codec.CodecID.CompanyID,
				VendorCodecID:        a.Dynamic.Codec.CodecID.VendorCodecID,
				TargetLatency:        a.Dynamic.Codec.TargetLatency,
				TargetPhy:            a.Dynamic.Codec.TargetPhy,
				PresentationDelayMin: a.Dynamic.Codec.PresentationDelayMin,
				Configuration:        cloneBytes(a.Dynamic.Codec.Configuration),
			},
			Metadata: cloneBytes(a.Dynamic.Metadata),
		}
		if q := a.Dynamic.Qos; q != nil {
			d.Qos = &wire.HandoverQos{
				CigID:                q.CigID,
				CisID:                q.CisID,
				SduInterval:          q.SduInterval,
				Framing:              q.Framing,
				Phy:                  q.Phy,
				MaxSdu:               q.MaxSdu,
				RetransmissionNumber: q.RetransmissionNumber,
				MaxTransportLatency:  q.MaxTransportLatency,
				PresentationDelay:    q.PresentationDelay,
			}
		}
		rec.Ases[i].Dynamic = d
	}
	return rec
}

// fromHandover rebuilds a connection from a validated record whose ASE
// count matches the server.
func (s *Server) fromHandover(rec *wire.HandoverConnection) *Connection {
	c := newConnection(rec.CID, s.config.MaxAses)
	c.cpCCCD = CCCD(rec.ControlPointCCCD)
	for i, ra := range rec.Ases {
		a := &c.ases[i]
		a.State = AseState(ra.State)
		a.CCCD = CCCD(ra.CCCD)
		if ra.Dynamic == nil {
			continue
		}
		rc := ra.Dynamic.Codec
		d := &DynamicData{
			Codec: CodecConfig{
				CodecID: CodecID{
					CodingFormat:  rc.CodingFormat,
					CompanyID:     rc.CompanyID,
					VendorCodecID: rc.VendorCodecID,
				},
				TargetLatency:        rc.TargetLatency,
				TargetPhy:            rc.TargetPhy,
				PresentationDelayMin: rc.PresentationDelayMin,
				Configuration:        cloneBytes(rc.Configuration),
			},
			Metadata: cloneBytes(ra.Dynamic.Metadata),
		}
		if rq := ra.Dynamic.Qos; rq != nil {
			d.Qos = &QosConfig{
				CigID:                rq.CigID,
				CisID:                rq.CisID,
				SduInterval:          rq.SduInterval,
				Framing:              rq.Framing,
				Phy:                  rq.Phy,
				MaxSdu:               rq.MaxSdu,
				RetransmissionNumber: rq.RetransmissionNumber,
				MaxTransportLatency:  rq.MaxTransportLatency,
				PresentationDelay:    rq.PresentationDelay,
			}
		}
		a.Dynamic = d
	}
	return c
}

func (s *Server) logHandover(cid uint32, e *log.HandoverEvent) {
	s.logEvent(log.Event{
		ConnectionID: cid,
		Layer:        log.LayerHandover,
		Category:     log.CategoryHandover,
		Handover:     e,
	})
}
