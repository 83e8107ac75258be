package ascs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/ascs-go/pkg/log"
	"github.com/mash-protocol/ascs-go/pkg/wire"
)

// marshalAll drains a handover record in windows of the given size.
func marshalAll(t *testing.T, h Handover, cid uint32, window int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, window)
	for i := 0; i < 1000; i++ {
		done, n := h.Marshal(cid, buf)
		out = append(out, buf[:n]...)
		if done {
			return out
		}
	}
	t.Fatal("marshal never finished")
	return nil
}

// unmarshalAll feeds a record in windows and returns the bytes consumed.
func unmarshalAll(t *testing.T, h Handover, cid uint32, data []byte, window int) int {
	t.Helper()
	consumed := 0
	for off := 0; off < len(data); off += window {
		end := min(off+window, len(data))
		done, n, err := h.Unmarshal(cid, data[off:end])
		require.NoError(t, err)
		consumed += n
		if done {
			return consumed
		}
		assert.Equal(t, end-off, n, "partial windows are consumed whole")
	}
	t.Fatal("unmarshal never finished")
	return 0
}

// steadyFixture holds one ASE in each steady state.
func steadyFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.subscribe(testCID)
	f.toEnabling(t, testCID, []byte{0x03, 0x02, 0x04, 0x00}, 1)
	f.controlPoint(testCID, 0x04, 0x01, 0x01)
	f.toQosConfigured(t, testCID, 2)
	f.toCodecConfigured(t, testCID, 3)
	require.Equal(t, StateStreaming, f.state(t, testCID, 1))
	return f
}

func TestHandoverTransfersConnection(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)

	assert.False(t, primary.srv.Handover().Veto())

	record := marshalAll(t, primary.srv.Handover(), testCID, 7)
	require.NotEmpty(t, record)

	n := unmarshalAll(t, secondary.srv.Handover(), testCID, record, 5)
	assert.Equal(t, len(record), n)
	assert.Nil(t, secondary.srv.Connection(testCID), "nothing adopted before commit")

	require.NoError(t, secondary.srv.Handover().Commit(testCID, true))
	require.NoError(t, primary.srv.Handover().Commit(testCID, false))
	primary.srv.Handover().Complete()
	secondary.srv.Handover().Complete()

	assert.Nil(t, primary.srv.Connection(testCID))
	conn := secondary.srv.Connection(testCID)
	require.NotNil(t, conn)
	assert.Equal(t, CCCDNotify, conn.ControlPointCCCD())

	got := conn.Snapshot()
	assert.Equal(t, StateStreaming, got[0].State)
	assert.Equal(t, []byte{0x03, 0x02, 0x04, 0x00}, got[0].Dynamic.Metadata)
	assert.Equal(t, StateQosConfigured, got[1].State)
	assert.Equal(t, uint8(2), got[1].Dynamic.Qos.CisID)
	assert.Equal(t, StateCodecConfigured, got[2].State)
	assert.Equal(t, lc3Config, got[2].Dynamic.Codec.Configuration)
	assert.Nil(t, got[2].Dynamic.Qos)
	assert.Equal(t, StateIdle, got[3].State)
	assert.Nil(t, got[3].Dynamic)
	for _, a := range got {
		assert.Equal(t, CCCDNotify, a.CCCD)
	}

	// The adopted connection keeps working.
	secondary.controlPoint(testCID, 0x08, 0x01, 0x02)
	assert.Equal(t, []byte{0x08, 0x01, 0x02, 0x00, 0x00}, secondary.lastCP(t))
	assert.Equal(t, StateReleasing, secondary.state(t, testCID, 2))
}

func TestHandoverSnapshotMatches(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	unmarshalAll(t, secondary.srv.Handover(), testCID, record, len(record))
	require.NoError(t, secondary.srv.Handover().Commit(testCID, true))

	assert.Equal(t, primary.srv.Connection(testCID).Snapshot(), secondary.srv.Connection(testCID).Snapshot())
}

func TestHandoverMarshalIsRepeatable(t *testing.T) {
	f := steadyFixture(t)

	first := marshalAll(t, f.srv.Handover(), testCID, 3)
	second := marshalAll(t, f.srv.Handover(), testCID, 100)
	assert.Equal(t, first, second)
}

func TestHandoverMarshalUnknownConnection(t *testing.T) {
	f := newFixture(t)

	done, n := f.srv.Handover().Marshal(testCID, make([]byte, 16))
	assert.True(t, done)
	assert.Equal(t, 0, n)
}

func TestHandoverVetoedInTransientStates(t *testing.T) {
	f := newFixture(t)
	f.subscribe(testCID)
	f.toQosConfigured(t, testCID, 1)
	assert.False(t, f.srv.Handover().Veto())

	f.controlPoint(testCID, 0x03, 0x01, 0x01, 0x00)
	require.NoError(t, f.srv.EnableResponse(testCID, success(1)))
	assert.True(t, f.srv.Handover().Veto(), "enabling")

	f.controlPoint(testCID, 0x08, 0x01, 0x01)
	assert.True(t, f.srv.Handover().Veto(), "releasing")

	require.NoError(t, f.srv.ReleaseComplete(testCID, []ReleaseCompleteParams{{AseID: 1}}))
	assert.False(t, f.srv.Handover().Veto())

	events := f.protoLog.byCategory(log.CategoryHandover)
	require.NotEmpty(t, events)
	assert.Equal(t, log.HandoverVeto, events[0].Handover.Phase)
}

func TestHandoverUnmarshalRejectsOtherConnection(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	_, _, err := secondary.srv.Handover().Unmarshal(testCID2, record)
	assert.ErrorIs(t, err, ErrHandoverMismatch)
}

func TestHandoverUnmarshalRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	done, _, err := f.srv.Handover().Unmarshal(testCID, []byte{0xFF, 0x00})
	assert.Error(t, err)
	assert.False(t, done)
}

func TestHandoverUnmarshalReportsConsumedBytes(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	data := append(append([]byte(nil), record...), 0xAA, 0xBB)

	done, n, err := secondary.srv.Handover().Unmarshal(testCID, data)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, len(record), n)
}

func TestHandoverRejectsAseCountMismatch(t *testing.T) {
	primary := steadyFixture(t)
	cfg := testConfig()
	cfg.MaxAses = 2
	secondary := newFixtureWithConfig(t, cfg)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	done, _, err := secondary.srv.Handover().Unmarshal(testCID, record)
	assert.False(t, done)
	assert.ErrorIs(t, err, ErrHandoverMismatch)
	assert.ErrorIs(t, err, ErrAseCountMismatch)

	require.NoError(t, secondary.srv.Handover().Commit(testCID, true))
	assert.Nil(t, secondary.srv.Connection(testCID))
}

// idleRecord is a valid record with every ASE of testCID Idle.
func idleRecord() *wire.HandoverConnection {
	rec := &wire.HandoverConnection{CID: testCID, ControlPointCCCD: 1}
	for id := uint8(1); id <= testAses; id++ {
		rec.Ases = append(rec.Ases, wire.HandoverAse{ID: id, CCCD: 1})
	}
	return rec
}

func TestHandoverRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*wire.HandoverConnection)
		wantErr error
	}{
		{"ids out of position", func(r *wire.HandoverConnection) {
			r.Ases[0].ID, r.Ases[1].ID = 2, 1
		}, wire.ErrInvalidAseID},
		{"repeated id", func(r *wire.HandoverConnection) {
			r.Ases[3].ID = 3
		}, wire.ErrInvalidAseID},
		{"qos configured without qos", func(r *wire.HandoverConnection) {
			r.Ases[0].State = uint8(StateQosConfigured)
			r.Ases[0].Dynamic = &wire.HandoverDynamic{
				Codec: wire.HandoverCodec{CodingFormat: 0x06, Configuration: lc3Config},
			}
		}, wire.ErrQosMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := idleRecord()
			tt.mutate(rec)
			data, err := wire.Marshal(rec)
			require.NoError(t, err)

			done, _, err := f.srv.Handover().Unmarshal(testCID, data)
			assert.False(t, done)
			assert.ErrorIs(t, err, tt.wantErr)

			require.NoError(t, f.srv.Handover().Commit(testCID, true))
			assert.Nil(t, f.srv.Connection(testCID))
		})
	}
}

func TestHandoverAcceptsIdleRecord(t *testing.T) {
	f := newFixture(t)
	data, err := wire.Marshal(idleRecord())
	require.NoError(t, err)

	done, _, err := f.srv.Handover().Unmarshal(testCID, data)
	require.NoError(t, err)
	require.True(t, done)
	require.NoError(t, f.srv.Handover().Commit(testCID, true))

	value, err := f.srv.GetAseData(testCID, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00}, value)
	assert.Equal(t, DirectionSource, f.srv.ReadAseDirection(testCID, 2))
}

func TestHandoverCommitWhenRegistryFull(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)
	secondary.read(testCID2, secondary.srv.Handles().AseValue(1), 0)
	secondary.read(testCID3, secondary.srv.Handles().AseValue(1), 0)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	unmarshalAll(t, secondary.srv.Handover(), testCID, record, 16)

	err := secondary.srv.Handover().Commit(testCID, true)
	assert.ErrorIs(t, err, ErrRegistryFull)
	assert.Nil(t, secondary.srv.Connection(testCID))
}

func TestHandoverAbortDiscardsPending(t *testing.T) {
	primary := steadyFixture(t)
	secondary := newFixture(t)

	record := marshalAll(t, primary.srv.Handover(), testCID, 64)
	unmarshalAll(t, secondary.srv.Handover(), testCID, record, 64)

	secondary.srv.Handover().Abort()
	require.NoError(t, secondary.srv.Handover().Commit(testCID, true))
	assert.Nil(t, secondary.srv.Connection(testCID))

	// A partial record is discarded as well.
	_, _, err := secondary.srv.Handover().Unmarshal(testCID, record[:4])
	require.NoError(t, err)
	secondary.srv.Handover().Abort()
	done, _, err := secondary.srv.Handover().Unmarshal(testCID, record)
	require.NoError(t, err)
	assert.True(t, done)
}
