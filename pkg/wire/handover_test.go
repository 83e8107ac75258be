package wire

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *HandoverConnection {
	return &HandoverConnection{
		CID:              0x41,
		ControlPointCCCD: 1,
		Ases: []HandoverAse{
			{ID: 1, State: 0, CCCD: 1},
			{
				ID: 2, State: 2, CCCD: 1,
				Dynamic: &HandoverDynamic{
					Codec: HandoverCodec{CodingFormat: 0x06, TargetLatency: 2, TargetPhy: 2, PresentationDelayMin: 20000, Configuration: []byte{0x02, 0x01, 0x08}},
					Qos:   &HandoverQos{CigID: 1, CisID: 2, SduInterval: 10000, Phy: 2, MaxSdu: 120, RetransmissionNumber: 2, MaxTransportLatency: 10, PresentationDelay: 40000},
				},
			},
		},
	}
}

func TestHandoverRecordEncodeDecode(t *testing.T) {
	rec := sampleRecord()

	data, err := EncodeHandover(rec)
	require.NoError(t, err)

	decoded, rest, err := DecodeHandover(data)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, rec, decoded)
}

func TestHandoverEncodingIsDeterministic(t *testing.T) {
	a, err := EncodeHandover(sampleRecord())
	require.NoError(t, err)
	b, err := EncodeHandover(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHandoverRecordUsesIntegerKeys(t *testing.T) {
	data, err := EncodeHandover(sampleRecord())
	require.NoError(t, err)

	var raw map[uint64]any
	_, err = UnmarshalFirst(data, &raw)
	require.NoError(t, err)
	assert.Len(t, raw, 3)
	assert.Contains(t, raw, uint64(1))
	assert.Contains(t, raw, uint64(2))
	assert.Contains(t, raw, uint64(3))
	assert.Equal(t, uint64(0x41), raw[1])
}

func TestDecodeHandoverTruncated(t *testing.T) {
	data, err := EncodeHandover(sampleRecord())
	require.NoError(t, err)

	_, _, err = DecodeHandover(data[:len(data)/2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDecodeHandoverReturnsTrailingBytes(t *testing.T) {
	data, err := EncodeHandover(sampleRecord())
	require.NoError(t, err)

	_, rest, err := DecodeHandover(append(data, 0xAA, 0xBB))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, rest)
}

func TestHandoverValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*HandoverConnection)
		wantErr error
	}{
		{"no ases", func(c *HandoverConnection) { c.Ases = nil }, ErrNoAses},
		{"zero id", func(c *HandoverConnection) { c.Ases[0].ID = 0 }, ErrInvalidAseID},
		{"ids out of position", func(c *HandoverConnection) { c.Ases[0].ID, c.Ases[1].ID = 2, 1 }, ErrInvalidAseID},
		{"repeated id", func(c *HandoverConnection) { c.Ases[1].ID = 1 }, ErrInvalidAseID},
		{"qos configured without qos", func(c *HandoverConnection) { c.Ases[1].Dynamic.Qos = nil }, ErrQosMissing},
		{"streaming without qos", func(c *HandoverConnection) {
			c.Ases[1].State = 4
			c.Ases[1].Dynamic.Qos = nil
		}, ErrQosMissing},
		{"bad state", func(c *HandoverConnection) { c.Ases[0].State = 7 }, ErrInvalidState},
		{"idle with dynamic", func(c *HandoverConnection) { c.Ases[0].Dynamic = &HandoverDynamic{} }, ErrDynamicIdle},
		{"configured without dynamic", func(c *HandoverConnection) { c.Ases[1].Dynamic = nil }, ErrDynamicMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(rec)
			err := rec.Validate()
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = EncodeHandover(rec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHandoverValidateAcceptsCodecOnlyStates(t *testing.T) {
	for _, state := range []uint8{0x01, 0x06} {
		rec := sampleRecord()
		rec.Ases[1].State = state
		rec.Ases[1].Dynamic.Qos = nil
		assert.NoError(t, rec.Validate(), "state %d", state)
	}
}

func TestDecodeHandoverRejectsInvalidRecord(t *testing.T) {
	rec := sampleRecord()
	rec.Ases[1].Dynamic.Qos = nil
	data, err := Marshal(rec)
	require.NoError(t, err)

	_, _, err = DecodeHandover(data)
	assert.ErrorIs(t, err, ErrQosMissing)
}
