package ascs

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// ErrNoTransport is returned by NewServer when no Transport is supplied.
var ErrNoTransport = errors.New("transport is required")

// Server is the ASCS engine. It owns the connection registry and runs the
// ASE state machine for every connection.
//
// Server is not safe for concurrent use: all entry points must be called
// from a single goroutine, or serialized by the caller.
type Server struct {
	config    Config
	id        string
	registry  *Registry
	handles   HandleMap
	app       Application
	defaults  CodecDefaults
	transport Transport
	logger    *slog.Logger
	protoLog  log.Logger
	handover  handoverState
}

// NewServer creates a Server. app and defaults may be nil.
func NewServer(cfg Config, app Application, defaults CodecDefaults, transport Transport) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNoTransport
	}
	if app == nil {
		app = NopApplication{}
	}
	return &Server{
		config:    cfg,
		id:        uuid.New().String(),
		registry:  NewRegistry(cfg.MaxConnections, cfg.MaxAses),
		handles:   NewHandleMap(cfg.BaseHandle, cfg.MaxAses),
		app:       app,
		defaults:  defaults,
		transport: transport,
		logger:    cfg.Logger,
		protoLog:  cfg.ProtocolLogger,
	}, nil
}

// ID returns the server instance id stamped into protocol events.
func (s *Server) ID() string {
	return s.id
}

// Handles returns the attribute handle layout.
func (s *Server) Handles() HandleMap {
	return s.handles
}

// MaxAses returns the number of ASEs per connection.
func (s *Server) MaxAses() int {
	return s.config.MaxAses
}

// Registry returns the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Connection returns the connection with the given id, or nil.
func (s *Server) Connection(cid uint32) *Connection {
	return s.registry.Find(cid)
}

// Disconnect drops all state for a link.
func (s *Server) Disconnect(cid uint32) {
	if s.registry.Remove(cid) != nil {
		s.debugLog("connection removed", "cid", cid)
		s.logConnection(cid, "CONNECTED", "DISCONNECTED", "link lost")
	}
}

// findAse returns the ASE on a live connection, or nil.
func (s *Server) findAse(cid uint32, aseID uint8) *Ase {
	conn := s.registry.Find(cid)
	if conn == nil {
		return nil
	}
	return conn.Ase(aseID)
}

// setState moves an ASE to state and notifies the client if subscribed.
//
// serverInfo, when non-nil, supplies the server fields of a Codec
// Configured value; otherwise they come from CodecDefaults.
func (s *Server) setState(cid uint32, ase *Ase, state AseState, serverInfo *ServerCodecInfo) {
	old := ase.State
	ase.State = state
	if (state == StateIdle || state == StateCodecConfigured) && ase.Dynamic != nil {
		ase.Dynamic.Qos = nil
		ase.Dynamic.qosPending = false
		ase.Dynamic.settledQos = nil
	}
	s.debugLog("ase state changed", "cid", cid, "ase", ase.ID, "from", old, "to", state)
	s.logAseState(cid, ase.ID, old, state)
	s.notifyAse(cid, ase, serverInfo)
}

// notifyAse sends the current value of an ASE characteristic if the client
// subscribed to it. A value that cannot be built for the current state is an
// internal consistency fault.
func (s *Server) notifyAse(cid uint32, ase *Ase, serverInfo *ServerCodecInfo) {
	if ase.CCCD != CCCDNotify {
		return
	}
	value := s.mustSerialize(cid, ase, serverInfo)
	if s.config.NotifyHook != nil {
		value = s.config.NotifyHook(cid, ase.ID, value)
		if ase.State == StateCodecConfigured && ase.Dynamic != nil && len(value) >= codecPdMinOffset+3 {
			ase.Dynamic.Codec.PresentationDelayMin = read24(value[codecPdMinOffset:])
		}
	}
	s.send(cid, s.handles.AseValue(ase.ID), value)
}

// notifyControlPoint sends the aggregated outcome of the current operation
// if the client subscribed to the Control Point.
func (s *Server) notifyControlPoint(conn *Connection) {
	value, ok := conn.cpNotify.Serialize()
	if !ok {
		return
	}
	s.logOperationOutcome(conn)
	if conn.cpCCCD != CCCDNotify {
		return
	}
	s.send(conn.cid, s.handles.ControlPoint(), value)
}

func (s *Server) send(cid uint32, handle uint16, value []byte) {
	s.logNotification(cid, handle, value)
	s.transport.Notify(cid, handle, value)
}

func (s *Server) mustSerialize(cid uint32, ase *Ase, serverInfo *ServerCodecInfo) []byte {
	value, err := s.serialize(cid, ase, serverInfo)
	if err != nil {
		panic(fmt.Sprintf("ascs: cannot build value for ase %d on connection %d in state %s: %v", ase.ID, cid, ase.State, err))
	}
	return value
}

// debugLog logs a debug message if logging is enabled.
func (s *Server) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

// logEvent stamps and emits a protocol event.
func (s *Server) logEvent(e log.Event) {
	if s.protoLog == nil {
		return
	}
	e.Timestamp = time.Now()
	e.ServerID = s.id
	s.protoLog.Log(e)
}

func (s *Server) logAseState(cid uint32, aseID uint8, old, state AseState) {
	id := aseID
	s.logEvent(log.Event{
		ConnectionID: cid,
		Direction:    log.DirectionOut,
		Layer:        log.LayerEngine,
		Category:     log.CategoryState,
		AseID:        &id,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAse,
			OldState: old.String(),
			NewState: state.String(),
		},
	})
}

func (s *Server) logConnection(cid uint32, old, state, reason string) {
	s.logEvent(log.Event{
		ConnectionID: cid,
		Layer:        log.LayerEngine,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old,
			NewState: state,
			Reason:   reason,
		},
	})
}

func (s *Server) logNotification(cid uint32, handle uint16, value []byte) {
	data, truncated := log.TruncateData(value)
	s.logEvent(log.Event{
		ConnectionID: cid,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryNotification,
		Handle:       handle,
		Notification: &log.NotificationEvent{Data: data, Truncated: truncated},
	})
}

func (s *Server) logOperationOutcome(conn *Connection) {
	if s.protoLog == nil {
		return
	}
	n := conn.cpNotify
	results := make([]log.OperationResult, 0, n.Len())
	for _, r := range n.results {
		results = append(results, log.OperationResult{AseID: r.AseID, Code: uint8(r.Code), Reason: uint8(r.Reason)})
	}
	s.logEvent(log.Event{
		ConnectionID: conn.cid,
		Direction:    log.DirectionOut,
		Layer:        log.LayerControlPoint,
		Category:     log.CategoryOperation,
		Operation: &log.OperationEvent{
			Opcode:  uint8(n.opcode),
			Name:    n.opcode.String(),
			NumAses: uint8(n.Len()),
			Aborted: n.aborted,
			Results: results,
		},
	})
}

func (s *Server) logError(cid uint32, layer log.Layer, code int, msg, context string) {
	c := code
	s.logEvent(log.Event{
		ConnectionID: cid,
		Layer:        layer,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: msg,
			Code:    &c,
			Context: context,
		},
	})
}
