package ascs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFindOrCreate(t *testing.T) {
	r := NewRegistry(2, 4)

	c1, err := r.FindOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), c1.CID())
	assert.Equal(t, 4, c1.NumAses())

	again, err := r.FindOrCreate(1)
	require.NoError(t, err)
	assert.Same(t, c1, again, "no duplicate connections")

	_, err = r.FindOrCreate(2)
	require.NoError(t, err)

	_, err = r.FindOrCreate(3)
	assert.ErrorIs(t, err, ErrRegistryFull)

	_, err = r.FindOrCreate(InvalidConnectionID)
	assert.ErrorIs(t, err, ErrInvalidConnectionID)

	assert.Equal(t, 2, r.Len())
}

func TestNewConnectionAses(t *testing.T) {
	c := newConnection(7, 3)

	for i, a := range c.Snapshot() {
		assert.Equal(t, uint8(i+1), a.ID)
		assert.Equal(t, StateIdle, a.State)
		assert.Equal(t, CCCDNeverWritten, a.CCCD)
		assert.Nil(t, a.Dynamic)
	}
	assert.Nil(t, c.Ase(0))
	assert.Nil(t, c.Ase(4))
	assert.Equal(t, CCCDNeverWritten, c.ControlPointCCCD())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(3, 2)
	c, _ := r.FindOrCreate(1)
	c.Ase(1).State = StateCodecConfigured
	c.Ase(1).Dynamic = &DynamicData{Metadata: []byte{1}}
	_, _ = r.FindOrCreate(2)

	removed := r.Remove(1)
	require.NotNil(t, removed)
	assert.Nil(t, removed.Ase(1).Dynamic, "dynamic data is dropped")
	assert.Nil(t, r.Find(1))
	assert.Equal(t, []*Connection{r.Find(2)}, r.Connections())

	assert.Nil(t, r.Remove(1), "removing an unknown id is a no-op")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryAdopt(t *testing.T) {
	r := NewRegistry(1, 2)

	require.NoError(t, r.adopt(newConnection(5, 2)))
	assert.ErrorIs(t, r.adopt(newConnection(5, 2)), ErrRegistryFull)
	assert.ErrorIs(t, r.adopt(newConnection(6, 2)), ErrRegistryFull)
	assert.ErrorIs(t, r.adopt(newConnection(InvalidConnectionID, 2)), ErrInvalidConnectionID)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	c := newConnection(1, 2)
	c.Ase(1).State = StateQosConfigured
	c.Ase(1).Dynamic = &DynamicData{
		Codec:    CodecConfig{Configuration: []byte{0x02, 0x01, 0x08}},
		Qos:      &QosConfig{CisID: 1},
		Metadata: []byte{0x01, 0x02},
	}

	snap := c.Snapshot()
	snap[0].Dynamic.Codec.Configuration[0] = 0xFF
	snap[0].Dynamic.Qos.CisID = 9
	snap[0].Dynamic.Metadata[0] = 0xFF

	d := c.Ase(1).Dynamic
	assert.Equal(t, byte(0x02), d.Codec.Configuration[0])
	assert.Equal(t, uint8(1), d.Qos.CisID)
	assert.Equal(t, byte(0x01), d.Metadata[0])
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no ases", func(c *Config) { c.MaxAses = 0 }},
		{"too many ases", func(c *Config) { c.MaxAses = 0xFF }},
		{"no connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero base handle", func(c *Config) { c.BaseHandle = 0 }},
		{"handle overflow", func(c *Config) { c.BaseHandle = 0xFFF0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNewServerRequiresTransport(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoTransport)

	_, err = NewServer(Config{}, nil, nil, &recordingTransport{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	srv, err := NewServer(DefaultConfig(), nil, nil, &recordingTransport{})
	require.NoError(t, err)
	assert.NotEmpty(t, srv.ID())
}
