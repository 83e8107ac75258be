package ascs

import "github.com/mash-protocol/ascs-go/pkg/log"

// connectionFor resolves the connection an Application call refers to.
func (s *Server) connectionFor(cid uint32) (*Connection, error) {
	if cid == InvalidConnectionID {
		return nil, ErrInvalidConnectionID
	}
	conn := s.registry.Find(cid)
	if conn == nil {
		s.debugLog("application call for unknown connection", "cid", cid)
		return nil, ErrUnknownConnection
	}
	return conn, nil
}

// recordResults adds the Application's failures to the pending Control
// Point notification and sends it.
func (s *Server) recordResults(conn *Connection, results []AseResult) {
	for _, r := range results {
		if r.Code != ResponseSuccess {
			conn.cpNotify.Record(r.AseID, r.Code, r.Reason)
		}
	}
	s.logResponse(conn, results)
	s.notifyControlPoint(conn)
}

// ConfigureCodecResponse answers a ConfigureCodecIndication. Successful
// ASEs cache the server codec values and move to Codec Configured.
func (s *Server) ConfigureCodecResponse(cid uint32, results []CodecResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.recordResults(conn, codecResults(results))

	for _, r := range results {
		ase := conn.Ase(r.Result.AseID)
		if ase == nil || ase.Dynamic == nil {
			continue
		}
		if r.Result.Code != ResponseSuccess {
			// A rejected first configuration leaves the ASE Idle.
			if ase.State == StateIdle {
				ase.Dynamic = nil
			}
			continue
		}
		ase.Dynamic.Codec.Configuration = cloneBytes(r.Server.Configuration)
		ase.Dynamic.Codec.PresentationDelayMin = r.Server.PresentationDelayMin
		info := r.Server
		s.setState(cid, ase, StateCodecConfigured, &info)
	}
	return nil
}

// ConfigureCodecRequest moves ASEs to Codec Configured on the server's own
// initiative.
func (s *Server) ConfigureCodecRequest(cid uint32, requests []CodecRequest) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for i := range requests {
		req := &requests[i]
		ase := conn.Ase(req.AseID)
		if ase == nil {
			continue
		}
		if ase.Dynamic == nil {
			ase.Dynamic = &DynamicData{}
		}
		ase.Dynamic.Codec = CodecConfig{
			CodecID:              req.CodecID,
			TargetLatency:        req.TargetLatency,
			TargetPhy:            req.TargetPhy,
			PresentationDelayMin: req.Server.PresentationDelayMin,
			Configuration:        cloneBytes(req.Server.Configuration),
		}
		info := req.Server
		s.setState(cid, ase, StateCodecConfigured, &info)
	}
	return nil
}

// ConfigureQosResponse answers a ConfigureQosIndication. Successful ASEs
// cache the QoS values and move to QoS Configured.
func (s *Server) ConfigureQosResponse(cid uint32, results []QosResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	plain := make([]AseResult, len(results))
	for i, r := range results {
		plain[i] = r.Result
	}
	s.recordResults(conn, plain)

	for _, r := range results {
		ase := conn.Ase(r.Result.AseID)
		if ase == nil || ase.Dynamic == nil {
			continue
		}
		if r.Result.Code != ResponseSuccess {
			// Undo the mapping cached when the operation arrived.
			ase.Dynamic.settleQos(nil)
			continue
		}
		q := r.Qos
		ase.Dynamic.settleQos(&q)
		s.setState(cid, ase, StateQosConfigured, nil)
	}
	return nil
}

// ConfigureQosRequest moves ASEs holding a codec configuration to QoS
// Configured on the server's own initiative.
func (s *Server) ConfigureQosRequest(cid uint32, requests []QosParams) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, req := range requests {
		ase := conn.Ase(req.AseID)
		if ase == nil || ase.Dynamic == nil {
			continue
		}
		q := req.Qos
		ase.Dynamic.Qos = &q
		s.setState(cid, ase, StateQosConfigured, nil)
	}
	return nil
}

// EnableResponse answers an EnableIndication. Successful ASEs move to
// Enabling.
func (s *Server) EnableResponse(cid uint32, results []AseResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.recordResults(conn, results)
	s.transitionSuccessful(conn, results, func(*Ase) (AseState, bool) {
		return StateEnabling, true
	})
	return nil
}

// ReceiverReadyResponse answers a Receiver Start Ready indication. The
// Control Point was already notified; successful source ASEs move to
// Streaming.
func (s *Server) ReceiverReadyResponse(cid uint32, results []AseResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.logResponse(conn, results)
	s.transitionSuccessful(conn, results, func(a *Ase) (AseState, bool) {
		return StateStreaming, a.Direction() == DirectionSource && a.State == StateEnabling
	})
	return nil
}

// ReceiverReadyRequest moves ASEs to Streaming on the server's own
// initiative.
func (s *Server) ReceiverReadyRequest(cid uint32, aseIDs ...uint8) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, id := range aseIDs {
		if ase := conn.Ase(id); ase != nil {
			s.setState(cid, ase, StateStreaming, nil)
		}
	}
	return nil
}

// UpdateMetadataResponse answers an UpdateMetadataIndication. Successful
// ASEs notify their new metadata.
func (s *Server) UpdateMetadataResponse(cid uint32, results []AseResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.recordResults(conn, results)
	for _, r := range results {
		if r.Code != ResponseSuccess {
			continue
		}
		if ase := conn.Ase(r.AseID); ase != nil {
			s.notifyAse(cid, ase, nil)
		}
	}
	return nil
}

// UpdateMetadataRequest replaces the metadata of Enabling, Streaming or QoS
// Configured ASEs on the server's own initiative. QoS Configured ASEs are
// updated silently.
func (s *Server) UpdateMetadataRequest(cid uint32, requests []MetadataParams) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, req := range requests {
		ase := conn.Ase(req.AseID)
		if ase == nil || ase.Dynamic == nil {
			continue
		}
		switch ase.State {
		case StateEnabling, StateStreaming:
			ase.Dynamic.Metadata = cloneBytes(req.Metadata)
			s.notifyAse(cid, ase, nil)
		case StateQosConfigured:
			ase.Dynamic.Metadata = cloneBytes(req.Metadata)
		}
	}
	return nil
}

// DisableResponse answers a Disable indication. Transitions were applied
// when the operation arrived; failures are only logged.
func (s *Server) DisableResponse(cid uint32, results []AseResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.logResponse(conn, results)
	return nil
}

// DisableRequest disables ASEs on the server's own initiative. Sink ASEs
// return to QoS Configured. Source ASEs go to Disabling, or straight to QoS
// Configured when the isochronous stream was lost.
func (s *Server) DisableRequest(cid uint32, cisLoss bool, aseIDs ...uint8) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, id := range aseIDs {
		ase := conn.Ase(id)
		if ase == nil {
			continue
		}
		if ase.Direction() == DirectionSink || cisLoss {
			s.setState(cid, ase, StateQosConfigured, nil)
		} else {
			s.setState(cid, ase, StateDisabling, nil)
		}
	}
	return nil
}

// ReceiverStopReadyResponse answers a Receiver Stop Ready indication.
// Successful source ASEs return to QoS Configured.
func (s *Server) ReceiverStopReadyResponse(cid uint32, results []AseResult) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	s.recordResults(conn, results)
	s.transitionSuccessful(conn, results, func(a *Ase) (AseState, bool) {
		return StateQosConfigured, a.Direction() == DirectionSource
	})
	return nil
}

// ReleaseRequest moves ASEs to Releasing on the server's own initiative.
func (s *Server) ReleaseRequest(cid uint32, aseIDs ...uint8) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, id := range aseIDs {
		if ase := conn.Ase(id); ase != nil {
			s.setState(cid, ase, StateReleasing, nil)
		}
	}
	return nil
}

// ReleaseComplete finishes the release of ASEs. An ASE keeping its codec
// configuration drops its metadata and returns to Codec Configured;
// otherwise its configuration is discarded and it returns to Idle.
func (s *Server) ReleaseComplete(cid uint32, params []ReleaseCompleteParams) error {
	conn, err := s.connectionFor(cid)
	if err != nil {
		return err
	}
	for _, p := range params {
		ase := conn.Ase(p.AseID)
		if ase == nil {
			continue
		}
		if p.CacheCodec && ase.Dynamic != nil {
			ase.Dynamic.Metadata = nil
			if p.Server != nil {
				ase.Dynamic.Codec.Configuration = cloneBytes(p.Server.Configuration)
				ase.Dynamic.Codec.PresentationDelayMin = p.Server.PresentationDelayMin
			}
			s.setState(cid, ase, StateCodecConfigured, p.Server)
			continue
		}
		ase.Dynamic = nil
		s.setState(cid, ase, StateIdle, nil)
	}
	return nil
}

func (s *Server) transitionSuccessful(conn *Connection, results []AseResult, next func(*Ase) (AseState, bool)) {
	for _, r := range results {
		if r.Code != ResponseSuccess {
			continue
		}
		ase := conn.Ase(r.AseID)
		if ase == nil {
			continue
		}
		if state, ok := next(ase); ok {
			s.setState(conn.cid, ase, state, nil)
		}
	}
}

func codecResults(results []CodecResult) []AseResult {
	out := make([]AseResult, len(results))
	for i, r := range results {
		out[i] = r.Result
	}
	return out
}

func (s *Server) logResponse(conn *Connection, results []AseResult) {
	if s.protoLog == nil {
		return
	}
	op := conn.cpNotify.Opcode()
	logged := make([]log.OperationResult, len(results))
	for i, r := range results {
		logged[i] = log.OperationResult{AseID: r.AseID, Code: uint8(r.Code), Reason: uint8(r.Reason)}
	}
	s.logEvent(log.Event{
		ConnectionID: conn.cid,
		Direction:    log.DirectionIn,
		Layer:        log.LayerEngine,
		Category:     log.CategoryOperation,
		Operation: &log.OperationEvent{
			Opcode:  uint8(op),
			Name:    op.String(),
			NumAses: uint8(len(results)),
			Results: logged,
		},
	})
}
