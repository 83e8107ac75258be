package ascs

import "errors"

// Registry errors.
var (
	// ErrInvalidConnectionID is returned for the reserved connection id 0.
	ErrInvalidConnectionID = errors.New("invalid connection id")

	// ErrRegistryFull is returned when no more connections can be tracked.
	ErrRegistryFull = errors.New("connection registry full")

	// ErrUnknownConnection is returned when an operation names a connection
	// the registry does not hold.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrUnknownAse is returned when an ASE id does not exist on a connection.
	ErrUnknownAse = errors.New("unknown ase")
)

// Connection is the per-link ASCS state: a fixed set of ASEs, the Control
// Point subscription and the aggregator for the operation in progress.
type Connection struct {
	cid      uint32
	ases     []Ase
	cpCCCD   CCCD
	cpNotify *ControlPointNotify
}

// newConnection creates a connection with numAses Idle ASEs numbered from 1.
func newConnection(cid uint32, numAses int) *Connection {
	c := &Connection{
		cid:      cid,
		ases:     make([]Ase, numAses),
		cpCCCD:   CCCDNeverWritten,
		cpNotify: NewControlPointNotify(numAses),
	}
	for i := range c.ases {
		c.ases[i] = Ase{
			ID:    uint8(i + 1),
			State: StateIdle,
			CCCD:  CCCDNeverWritten,
		}
	}
	return c
}

// CID returns the connection id.
func (c *Connection) CID() uint32 {
	return c.cid
}

// Ase returns the ASE with the given id, or nil.
func (c *Connection) Ase(id uint8) *Ase {
	if id == 0 || int(id) > len(c.ases) {
		return nil
	}
	return &c.ases[id-1]
}

// NumAses returns the number of ASEs on the connection.
func (c *Connection) NumAses() int {
	return len(c.ases)
}

// Snapshot returns a deep copy of the connection's ASEs.
func (c *Connection) Snapshot() []Ase {
	out := make([]Ase, len(c.ases))
	for i, a := range c.ases {
		out[i] = a.clone()
	}
	return out
}

// ControlPointCCCD returns the Control Point descriptor value.
func (c *Connection) ControlPointCCCD() CCCD {
	return c.cpCCCD
}

// findByCis returns an ASE other than exclude with the given direction and
// CIG/CIS pair in its cached QoS, or nil.
func (c *Connection) findByCis(dir Direction, cigID, cisID uint8, exclude uint8) *Ase {
	for i := range c.ases {
		a := &c.ases[i]
		if a.ID == exclude || a.Direction() != dir {
			continue
		}
		if a.Dynamic == nil || a.Dynamic.Qos == nil {
			continue
		}
		if a.Dynamic.Qos.CigID == cigID && a.Dynamic.Qos.CisID == cisID {
			return a
		}
	}
	return nil
}

// configComplete reports whether the client has written every descriptor.
func (c *Connection) configComplete() bool {
	if c.cpCCCD == CCCDNeverWritten {
		return false
	}
	for _, a := range c.ases {
		if a.CCCD == CCCDNeverWritten {
			return false
		}
	}
	return true
}

// release drops all dynamic data held by the connection's ASEs.
func (c *Connection) release() {
	for i := range c.ases {
		c.ases[i].Dynamic = nil
	}
}

// Registry owns the live connections of a server.
type Registry struct {
	maxConnections int
	maxAses        int
	conns          []*Connection
}

// NewRegistry creates a registry of at most maxConnections connections with
// maxAses ASEs each.
func NewRegistry(maxConnections, maxAses int) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		maxAses:        maxAses,
		conns:          make([]*Connection, 0, maxConnections),
	}
}

// Find returns the connection with the given id, or nil.
func (r *Registry) Find(cid uint32) *Connection {
	for _, c := range r.conns {
		if c.cid == cid {
			return c
		}
	}
	return nil
}

// FindOrCreate returns the connection with the given id, creating it if
// needed.
func (r *Registry) FindOrCreate(cid uint32) (*Connection, error) {
	if cid == InvalidConnectionID {
		return nil, ErrInvalidConnectionID
	}
	if c := r.Find(cid); c != nil {
		return c, nil
	}
	if len(r.conns) >= r.maxConnections {
		return nil, ErrRegistryFull
	}
	c := newConnection(cid, r.maxAses)
	r.conns = append(r.conns, c)
	return c, nil
}

// adopt inserts a fully built connection, replacing nothing.
func (r *Registry) adopt(c *Connection) error {
	if c.cid == InvalidConnectionID {
		return ErrInvalidConnectionID
	}
	if r.Find(c.cid) != nil || len(r.conns) >= r.maxConnections {
		return ErrRegistryFull
	}
	r.conns = append(r.conns, c)
	return nil
}

// Remove destroys the connection with the given id and returns it.
// Removing an unknown id is a no-op.
func (r *Registry) Remove(cid uint32) *Connection {
	for i, c := range r.conns {
		if c.cid == cid {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			c.release()
			return c
		}
	}
	return nil
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Connections returns the live connections in creation order.
func (r *Registry) Connections() []*Connection {
	out := make([]*Connection, len(r.conns))
	copy(out, r.conns)
	return out
}
