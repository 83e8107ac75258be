package ascs

import (
	"encoding/binary"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// ATTResult is an attribute protocol result code.
type ATTResult uint8

const (
	ATTSuccess                     ATTResult = 0x00
	ATTInvalidHandle               ATTResult = 0x01
	ATTReadNotPermitted            ATTResult = 0x02
	ATTWriteNotPermitted           ATTResult = 0x03
	ATTRequestNotSupported         ATTResult = 0x06
	ATTInvalidOffset               ATTResult = 0x07
	ATTInvalidAttributeValueLength ATTResult = 0x0D
	ATTUnlikelyError               ATTResult = 0x0E
	ATTInsufficientResources       ATTResult = 0x11
	ATTCCCDImproperlyConfigured    ATTResult = 0xFD
)

// String returns the result name.
func (r ATTResult) String() string {
	switch r {
	case ATTSuccess:
		return "SUCCESS"
	case ATTInvalidHandle:
		return "INVALID_HANDLE"
	case ATTReadNotPermitted:
		return "READ_NOT_PERMITTED"
	case ATTWriteNotPermitted:
		return "WRITE_NOT_PERMITTED"
	case ATTRequestNotSupported:
		return "REQUEST_NOT_SUPPORTED"
	case ATTInvalidOffset:
		return "INVALID_OFFSET"
	case ATTInvalidAttributeValueLength:
		return "INVALID_ATTRIBUTE_VALUE_LENGTH"
	case ATTUnlikelyError:
		return "UNLIKELY_ERROR"
	case ATTInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case ATTCCCDImproperlyConfigured:
		return "CCCD_IMPROPERLY_CONFIGURED"
	default:
		return "UNKNOWN"
	}
}

// AccessType distinguishes attribute reads from writes.
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
)

// AccessRequest is an attribute read or write from a client.
type AccessRequest struct {
	CID    uint32
	Handle uint16
	Type   AccessType
	Offset uint16
	Value  []byte
}

// HandleAccess processes an attribute access and answers it through the
// Transport. The result sent is also returned.
//
// A connection is created on the first access of a new link.
func (s *Server) HandleAccess(req AccessRequest) ATTResult {
	s.logAccess(req, ATTSuccess, nil, true)

	conn, err := s.registry.FindOrCreate(req.CID)
	if err != nil {
		s.debugLog("access rejected", "cid", req.CID, "error", err)
		return s.respond(req, ATTInsufficientResources, nil)
	}

	kind, aseID := s.handles.Lookup(req.Handle)
	switch kind {
	case AttributeControlPoint:
		if req.Type == AccessRead {
			return s.respond(req, ATTRequestNotSupported, nil)
		}
		// The write itself always succeeds; failures are reported in the
		// Control Point notification.
		s.respond(req, ATTSuccess, nil)
		s.handleControlPointWrite(conn, req.Value)
		return ATTSuccess

	case AttributeAseValue:
		if req.Type == AccessWrite {
			return s.respond(req, ATTWriteNotPermitted, nil)
		}
		value, err := s.serialize(conn.cid, conn.Ase(aseID), nil)
		if err != nil {
			s.logError(conn.cid, log.LayerTransport, int(ATTUnlikelyError), err.Error(), "read ase value")
			return s.respond(req, ATTUnlikelyError, nil)
		}
		return s.respondRead(req, value)

	case AttributeAseCCCD:
		return s.accessCCCD(conn, req, &conn.Ase(aseID).CCCD)

	case AttributeControlPointCCCD:
		return s.accessCCCD(conn, req, &conn.cpCCCD)
	}

	return s.respond(req, ATTInvalidHandle, nil)
}

func (s *Server) accessCCCD(conn *Connection, req AccessRequest, cccd *CCCD) ATTResult {
	if req.Type == AccessRead {
		v := *cccd
		if v == CCCDNeverWritten {
			v = CCCDNotSet
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v))
		return s.respondRead(req, buf)
	}

	if len(req.Value) != 2 {
		return s.respond(req, ATTInvalidAttributeValueLength, nil)
	}
	v := CCCD(binary.LittleEndian.Uint16(req.Value))
	if v != CCCDNotSet && v != CCCDNotify {
		return s.respond(req, ATTCCCDImproperlyConfigured, nil)
	}

	old := *cccd
	*cccd = v
	s.respond(req, ATTSuccess, nil)
	s.logEvent(log.Event{
		ConnectionID: conn.cid,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		Handle:       req.Handle,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDescriptor,
			OldState: old.String(),
			NewState: v.String(),
		},
	})
	s.app.Indicate(&CCCDChangeIndication{
		CID:            conn.cid,
		Handle:         req.Handle,
		Value:          v,
		ConfigComplete: conn.configComplete(),
	})
	return ATTSuccess
}

func (s *Server) respondRead(req AccessRequest, value []byte) ATTResult {
	if int(req.Offset) > len(value) {
		return s.respond(req, ATTInvalidOffset, nil)
	}
	return s.respond(req, ATTSuccess, value[req.Offset:])
}

func (s *Server) respond(req AccessRequest, result ATTResult, value []byte) ATTResult {
	if result != ATTSuccess || req.Type == AccessRead {
		s.logAccess(req, result, value, false)
	}
	s.transport.AccessResponse(req.CID, req.Handle, result, value)
	return result
}

func (s *Server) logAccess(req AccessRequest, result ATTResult, value []byte, incoming bool) {
	if s.protoLog == nil {
		return
	}
	t := log.AccessRead
	data := value
	dir := log.DirectionOut
	if req.Type == AccessWrite {
		t = log.AccessWrite
	}
	if incoming {
		dir = log.DirectionIn
		data = req.Value
	}
	data, truncated := log.TruncateData(data)
	s.logEvent(log.Event{
		ConnectionID: req.CID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryAccess,
		Handle:       req.Handle,
		Access: &log.AccessEvent{
			Type:      t,
			Offset:    req.Offset,
			Data:      data,
			Truncated: truncated,
			Result:    uint8(result),
		},
	})
}
