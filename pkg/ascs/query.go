package ascs

// ReadCodecConfiguration returns a copy of the codec configuration cached
// for an ASE, or nil when the ASE holds none.
func (s *Server) ReadCodecConfiguration(cid uint32, aseID uint8) *CodecConfig {
	ase := s.findAse(cid, aseID)
	if ase == nil || ase.Dynamic == nil {
		return nil
	}
	c := ase.Dynamic.Codec
	c.Configuration = cloneBytes(c.Configuration)
	return &c
}

// ReadQosConfiguration returns a copy of the QoS configuration cached for
// an ASE, or nil when the ASE holds none.
func (s *Server) ReadQosConfiguration(cid uint32, aseID uint8) *QosConfig {
	ase := s.findAse(cid, aseID)
	if ase == nil || ase.Dynamic == nil || ase.Dynamic.Qos == nil {
		return nil
	}
	q := *ase.Dynamic.Qos
	return &q
}

// ReadAseDirection returns the direction of an ASE on a live connection.
func (s *Server) ReadAseDirection(cid uint32, aseID uint8) Direction {
	ase := s.findAse(cid, aseID)
	if ase == nil {
		return DirectionUninitialised
	}
	return ase.Direction()
}

// ReadAseState returns the state of an ASE on a live connection.
func (s *Server) ReadAseState(cid uint32, aseID uint8) (AseState, error) {
	conn := s.registry.Find(cid)
	if conn == nil {
		return StateIdle, ErrUnknownConnection
	}
	ase := conn.Ase(aseID)
	if ase == nil {
		return StateIdle, ErrUnknownAse
	}
	return ase.State, nil
}

// ReadReleasingAseIDsByCIS returns the ids of the Releasing ASEs bound to
// cisID, at most one per direction.
func (s *Server) ReadReleasingAseIDsByCIS(cid uint32, cisID uint8) []uint8 {
	conn := s.registry.Find(cid)
	if conn == nil {
		return nil
	}
	var ids []uint8
	for _, a := range conn.ases {
		if len(ids) == MaxAseIDsPerCIS {
			break
		}
		if a.State != StateReleasing || a.Dynamic == nil || a.Dynamic.Qos == nil {
			continue
		}
		if a.Dynamic.Qos.CisID == cisID {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
