package ascs

import (
	"errors"
	"fmt"
)

// Client configuration errors.
var (
	// ErrAseCountMismatch is returned when a stored configuration does not
	// carry one descriptor per ASE.
	ErrAseCountMismatch = errors.New("ase descriptor count mismatch")

	// ErrInvalidCCCD is returned when a stored configuration carries a
	// descriptor value the server does not support.
	ErrInvalidCCCD = errors.New("invalid descriptor value")
)

// ClientConfig is the descriptor state a bonded client left behind. It is
// stored by the Application across links and restored with AddConfig.
type ClientConfig struct {
	ControlPointCCCD CCCD
	AseCCCDs         []CCCD
}

// AddConfig restores the descriptor state of a bonded client on link cid.
// The connection is created if needed. Subscribed characteristics are
// notified with their current value.
//
// A configuration that does not match the server's ASE layout removes the
// connection again.
func (s *Server) AddConfig(cid uint32, cfg *ClientConfig) error {
	conn, err := s.registry.FindOrCreate(cid)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	if len(cfg.AseCCCDs) != conn.NumAses() {
		s.registry.Remove(cid)
		return fmt.Errorf("%w: got %d, want %d", ErrAseCountMismatch, len(cfg.AseCCCDs), conn.NumAses())
	}
	if !cfg.ControlPointCCCD.valid() {
		s.registry.Remove(cid)
		return fmt.Errorf("%w: control point %#04x", ErrInvalidCCCD, uint16(cfg.ControlPointCCCD))
	}
	for i, c := range cfg.AseCCCDs {
		if !c.valid() {
			s.registry.Remove(cid)
			return fmt.Errorf("%w: ase %d %#04x", ErrInvalidCCCD, i+1, uint16(c))
		}
	}

	conn.cpCCCD = cfg.ControlPointCCCD
	for i, c := range cfg.AseCCCDs {
		conn.ases[i].CCCD = c
	}
	s.debugLog("client config restored", "cid", cid, "cp", conn.cpCCCD)
	s.logConnection(cid, "", "CONFIGURED", "client config restored")

	s.notifyControlPoint(conn)
	for i := range conn.ases {
		s.notifyAse(cid, &conn.ases[i], nil)
	}
	return nil
}

// GetConfig returns the descriptor state of link cid, or nil when the link
// is unknown.
func (s *Server) GetConfig(cid uint32) *ClientConfig {
	conn := s.registry.Find(cid)
	if conn == nil {
		return nil
	}
	return conn.clientConfig()
}

// RemoveConfig returns the descriptor state of link cid for storage and
// destroys the connection.
func (s *Server) RemoveConfig(cid uint32) *ClientConfig {
	conn := s.registry.Find(cid)
	if conn == nil {
		return nil
	}
	cfg := conn.clientConfig()
	s.registry.Remove(cid)
	s.logConnection(cid, "CONFIGURED", "REMOVED", "client config removed")
	return cfg
}

func (c *Connection) clientConfig() *ClientConfig {
	cfg := &ClientConfig{
		ControlPointCCCD: c.cpCCCD,
		AseCCCDs:         make([]CCCD, len(c.ases)),
	}
	for i, a := range c.ases {
		cfg.AseCCCDs[i] = a.CCCD
	}
	return cfg
}
