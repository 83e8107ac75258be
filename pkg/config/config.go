// Package config loads the YAML configuration of the ASCS simulator.
//
// A configuration file looks like:
//
//	server:
//	  max_ases: 4
//	  max_connections: 2
//	  base_handle: 0x0010
//	codec:
//	  framing: unframed
//	  preferred_phy: [2M]
//	  preferred_rtn: 2
//	  max_transport_latency: 10
//	  presentation_delay_min: 10000
//	  presentation_delay_max: 40000
//	  configuration: "020108020201"
//	connections:
//	  - cid: 64
//	    address: "11:22:33:44:55:66"
//	    cp_notify: true
//	    ase_notify: [1, 2]
//	log:
//	  file: ascs.alog
//	  debug: false
//
// Every field is optional; missing fields keep the engine defaults.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid simulator configuration")

// File is a parsed configuration file.
type File struct {
	Server      Server       `yaml:"server"`
	Codec       Codec        `yaml:"codec"`
	Connections []Connection `yaml:"connections"`
	Log         Log          `yaml:"log"`
}

// Server holds the engine limits.
type Server struct {
	MaxAses        int    `yaml:"max_ases"`
	MaxConnections int    `yaml:"max_connections"`
	BaseHandle     uint16 `yaml:"base_handle"`
}

// Codec holds the server codec preferences reported in Codec Configured.
type Codec struct {
	Framing                       string   `yaml:"framing"`
	PreferredPhy                  []string `yaml:"preferred_phy"`
	PreferredRetransmissionNumber uint8    `yaml:"preferred_rtn"`
	MaxTransportLatency           uint16   `yaml:"max_transport_latency"`
	PresentationDelayMin          uint32   `yaml:"presentation_delay_min"`
	PresentationDelayMax          uint32   `yaml:"presentation_delay_max"`
	PreferredPresentationDelayMin uint32   `yaml:"preferred_presentation_delay_min"`
	PreferredPresentationDelayMax uint32   `yaml:"preferred_presentation_delay_max"`

	// Configuration is the codec specific configuration as hex.
	Configuration string `yaml:"configuration"`
}

// Connection is a bonded client restored at startup. Address binds the
// entry to a remote device; without it only the descriptor values are
// restored under cid.
type Connection struct {
	CID                uint32  `yaml:"cid"`
	Address            string  `yaml:"address"`
	ControlPointNotify bool    `yaml:"cp_notify"`
	AseNotify          []uint8 `yaml:"ase_notify"`
}

// Log configures protocol capture.
type Log struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	d := ascs.DefaultConfig()
	return &File{
		Server: Server{
			MaxAses:        d.MaxAses,
			MaxConnections: d.MaxConnections,
			BaseHandle:     d.BaseHandle,
		},
		Codec: Codec{
			Framing:                       "unframed",
			PreferredPhy:                  []string{"2M"},
			PreferredRetransmissionNumber: 2,
			MaxTransportLatency:           10,
			PresentationDelayMin:          10000,
			PresentationDelayMax:          40000,
			PreferredPresentationDelayMin: 10000,
			PreferredPresentationDelayMax: 40000,
		},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data over the defaults.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the configuration against the engine limits.
func (f *File) Validate() error {
	if err := f.ServerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: server: %w", ErrInvalid, err)
	}
	if _, err := f.CodecInfo(); err != nil {
		return err
	}
	seen := make(map[uint32]bool)
	for i, c := range f.Connections {
		if c.CID == ascs.InvalidConnectionID {
			return fmt.Errorf("%w: connection %d: cid must be non-zero", ErrInvalid, i)
		}
		if seen[c.CID] {
			return fmt.Errorf("%w: connection %d: duplicate cid %d", ErrInvalid, i, c.CID)
		}
		seen[c.CID] = true
		for _, id := range c.AseNotify {
			if id == 0 || int(id) > f.Server.MaxAses {
				return fmt.Errorf("%w: connection %d: ase id %d out of range", ErrInvalid, c.CID, id)
			}
		}
	}
	if len(f.Connections) > f.Server.MaxConnections {
		return fmt.Errorf("%w: %d connections exceed max_connections %d", ErrInvalid, len(f.Connections), f.Server.MaxConnections)
	}
	return nil
}

// ServerConfig returns the engine configuration.
func (f *File) ServerConfig() ascs.Config {
	cfg := ascs.DefaultConfig()
	cfg.MaxAses = f.Server.MaxAses
	cfg.MaxConnections = f.Server.MaxConnections
	cfg.BaseHandle = f.Server.BaseHandle
	return cfg
}

// CodecInfo returns the server codec preferences.
func (f *File) CodecInfo() (ascs.ServerCodecInfo, error) {
	c := f.Codec
	info := ascs.ServerCodecInfo{
		PreferredRetransmissionNumber: c.PreferredRetransmissionNumber,
		MaxTransportLatency:           c.MaxTransportLatency,
		PresentationDelayMin:          c.PresentationDelayMin,
		PresentationDelayMax:          c.PresentationDelayMax,
		PreferredPresentationDelayMin: c.PreferredPresentationDelayMin,
		PreferredPresentationDelayMax: c.PreferredPresentationDelayMax,
	}

	switch strings.ToLower(c.Framing) {
	case "", "unframed":
		info.Framing = ascs.FramingUnframed
	case "framed":
		info.Framing = ascs.FramingFramed
	default:
		return info, fmt.Errorf("%w: codec: unknown framing %q", ErrInvalid, c.Framing)
	}

	for _, p := range c.PreferredPhy {
		switch strings.ToUpper(p) {
		case "1M":
			info.PreferredPhy |= ascs.Phy1M
		case "2M":
			info.PreferredPhy |= ascs.Phy2M
		case "CODED":
			info.PreferredPhy |= ascs.PhyCoded
		default:
			return info, fmt.Errorf("%w: codec: unknown phy %q", ErrInvalid, p)
		}
	}

	if c.Configuration != "" {
		b, err := hex.DecodeString(c.Configuration)
		if err != nil {
			return info, fmt.Errorf("%w: codec configuration: %w", ErrInvalid, err)
		}
		if !ascs.ValidLTV(b) {
			return info, fmt.Errorf("%w: codec configuration is not a valid LTV sequence", ErrInvalid)
		}
		info.Configuration = b
	}
	return info, nil
}

// ClientConfig returns the descriptor state to restore for a preset
// connection.
func (f *File) ClientConfig(c Connection) *ascs.ClientConfig {
	cfg := &ascs.ClientConfig{
		ControlPointCCCD: ascs.CCCDNotSet,
		AseCCCDs:         make([]ascs.CCCD, f.Server.MaxAses),
	}
	if c.ControlPointNotify {
		cfg.ControlPointCCCD = ascs.CCCDNotify
	}
	for _, id := range c.AseNotify {
		cfg.AseCCCDs[id-1] = ascs.CCCDNotify
	}
	return cfg
}
