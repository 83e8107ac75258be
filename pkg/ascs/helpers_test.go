package ascs

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// ---------------------------------------------------------------------------
// recordingTransport
// ---------------------------------------------------------------------------

type accessResponse struct {
	cid    uint32
	handle uint16
	result ATTResult
	value  []byte
}

type notification struct {
	cid    uint32
	handle uint16
	value  []byte
}

type recordingTransport struct {
	responses     []accessResponse
	notifications []notification
}

func (t *recordingTransport) AccessResponse(cid uint32, handle uint16, result ATTResult, value []byte) {
	t.responses = append(t.responses, accessResponse{cid, handle, result, value})
}

func (t *recordingTransport) Notify(cid uint32, handle uint16, value []byte) {
	t.notifications = append(t.notifications, notification{cid, handle, value})
}

func (t *recordingTransport) lastResponse() accessResponse {
	if len(t.responses) == 0 {
		return accessResponse{}
	}
	return t.responses[len(t.responses)-1]
}

// sent returns the values notified on handle, oldest first.
func (t *recordingTransport) sent(handle uint16) [][]byte {
	var out [][]byte
	for _, n := range t.notifications {
		if n.handle == handle {
			out = append(out, n.value)
		}
	}
	return out
}

func (t *recordingTransport) clear() {
	t.responses = nil
	t.notifications = nil
}

// ---------------------------------------------------------------------------
// recordingApp
// ---------------------------------------------------------------------------

type recordingApp struct {
	indications []Indication
	onIndicate  func(Indication)
}

func (a *recordingApp) Indicate(ind Indication) {
	if _, ok := ind.(*CCCDChangeIndication); !ok {
		a.indications = append(a.indications, ind)
	}
	if a.onIndicate != nil {
		a.onIndicate(ind)
	}
}

func (a *recordingApp) last() Indication {
	if len(a.indications) == 0 {
		return nil
	}
	return a.indications[len(a.indications)-1]
}

// ---------------------------------------------------------------------------
// stubDefaults
// ---------------------------------------------------------------------------

type stubDefaults struct{ mock.Mock }

func (d *stubDefaults) ServerCodecInfo(cid uint32, aseID uint8) (ServerCodecInfo, bool) {
	ret := d.Called(cid, aseID)
	return ret.Get(0).(ServerCodecInfo), ret.Bool(1)
}

// ---------------------------------------------------------------------------
// captureLogger
// ---------------------------------------------------------------------------

type captureLogger struct {
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.events = append(c.events, e)
}

func (c *captureLogger) byCategory(cat log.Category) []log.Event {
	var out []log.Event
	for _, e := range c.events {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

const (
	testCID  uint32 = 0x40
	testCID2 uint32 = 0x41
	testCID3 uint32 = 0x42
	testAses        = 4
)

// lc3Config is a 48 kHz, 10 ms LC3 codec configuration.
var lc3Config = []byte{0x02, 0x01, 0x08, 0x02, 0x02, 0x01}

var lc3 = CodecID{CodingFormat: 0x06}

func testServerInfo() ServerCodecInfo {
	return ServerCodecInfo{
		Framing:                       FramingUnframed,
		PreferredPhy:                  Phy2M,
		PreferredRetransmissionNumber: 2,
		MaxTransportLatency:           10,
		PresentationDelayMin:          10000,
		PresentationDelayMax:          40000,
		PreferredPresentationDelayMin: 10000,
		PreferredPresentationDelayMax: 40000,
		Configuration:                 lc3Config,
	}
}

type fixture struct {
	srv       *Server
	app       *recordingApp
	defaults  *stubDefaults
	transport *recordingTransport
	protoLog  *captureLogger
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAses = testAses
	cfg.MaxConnections = 2
	return cfg
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		app:       &recordingApp{},
		defaults:  &stubDefaults{},
		transport: &recordingTransport{},
		protoLog:  &captureLogger{},
	}
	f.defaults.On("ServerCodecInfo", mock.Anything, mock.Anything).Return(testServerInfo(), true).Maybe()
	cfg.ProtocolLogger = f.protoLog
	srv, err := NewServer(cfg, f.app, f.defaults, f.transport)
	require.NoError(t, err)
	f.srv = srv
	return f
}

func (f *fixture) write(cid uint32, handle uint16, value ...byte) ATTResult {
	return f.srv.HandleAccess(AccessRequest{CID: cid, Handle: handle, Type: AccessWrite, Value: value})
}

func (f *fixture) read(cid uint32, handle uint16, offset uint16) accessResponse {
	f.srv.HandleAccess(AccessRequest{CID: cid, Handle: handle, Type: AccessRead, Offset: offset})
	return f.transport.lastResponse()
}

// subscribe enables notifications on the Control Point and every ASE.
func (f *fixture) subscribe(cid uint32) {
	h := f.srv.Handles()
	f.write(cid, h.ControlPointCCCD(), 0x01, 0x00)
	for id := 1; id <= testAses; id++ {
		f.write(cid, h.AseCCCD(uint8(id)), 0x01, 0x00)
	}
	f.transport.clear()
}

func (f *fixture) controlPoint(cid uint32, value ...byte) {
	f.write(cid, f.srv.Handles().ControlPoint(), value...)
}

// cpSent returns the Control Point notifications sent so far.
func (f *fixture) cpSent() [][]byte {
	return f.transport.sent(f.srv.Handles().ControlPoint())
}

func (f *fixture) lastCP(t *testing.T) []byte {
	t.Helper()
	sent := f.cpSent()
	require.NotEmpty(t, sent, "no control point notification")
	return sent[len(sent)-1]
}

func (f *fixture) aseSent(id uint8) [][]byte {
	return f.transport.sent(f.srv.Handles().AseValue(id))
}

func (f *fixture) state(t *testing.T, cid uint32, id uint8) AseState {
	t.Helper()
	s, err := f.srv.ReadAseState(cid, id)
	require.NoError(t, err)
	return s
}

// codecRecord encodes one Config Codec ASE record with the LC3 config.
func codecRecord(id uint8) []byte {
	rec := []byte{id, TargetLatencyBalanced, TargetPhyLE2M, lc3.CodingFormat, 0, 0, 0, 0, uint8(len(lc3Config))}
	return append(rec, lc3Config...)
}

// qosRecord encodes one Config QoS ASE record.
func qosRecord(id, cig, cis uint8) []byte {
	return []byte{
		id, cig, cis,
		0x10, 0x27, 0x00, // SDU interval 10000
		FramingUnframed,
		Phy2M,
		0x64, 0x00,       // max SDU 100
		0x02,             // RTN
		0x0A, 0x00,       // max transport latency 10
		0x20, 0x4E, 0x00, // presentation delay 20000
	}
}

func op(opcode Opcode, records ...[]byte) []byte {
	out := []byte{uint8(opcode), uint8(len(records))}
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

func success(ids ...uint8) []AseResult {
	out := make([]AseResult, len(ids))
	for i, id := range ids {
		out[i] = AseResult{AseID: id}
	}
	return out
}

// toCodecConfigured drives ASEs through Config Codec and its response.
func (f *fixture) toCodecConfigured(t *testing.T, cid uint32, ids ...uint8) {
	t.Helper()
	records := make([][]byte, len(ids))
	results := make([]CodecResult, len(ids))
	for i, id := range ids {
		records[i] = codecRecord(id)
		results[i] = CodecResult{Result: AseResult{AseID: id}, Server: testServerInfo()}
	}
	f.controlPoint(cid, op(OpConfigCodec, records...)...)
	require.NoError(t, f.srv.ConfigureCodecResponse(cid, results))
}

// toQosConfigured continues to QoS Configured, one CIS per ASE.
func (f *fixture) toQosConfigured(t *testing.T, cid uint32, ids ...uint8) {
	t.Helper()
	f.toCodecConfigured(t, cid, ids...)
	records := make([][]byte, len(ids))
	results := make([]QosResult, len(ids))
	for i, id := range ids {
		records[i] = qosRecord(id, 1, id)
	}
	f.controlPoint(cid, op(OpConfigQos, records...)...)
	ind, ok := f.app.last().(*ConfigureQosIndication)
	require.True(t, ok)
	for i, p := range ind.Ases {
		results[i] = QosResult{Result: AseResult{AseID: p.AseID}, Qos: p.Qos}
	}
	require.NoError(t, f.srv.ConfigureQosResponse(cid, results[:len(ind.Ases)]))
}

// toEnabling continues to Enabling with the given metadata.
func (f *fixture) toEnabling(t *testing.T, cid uint32, metadata []byte, ids ...uint8) {
	t.Helper()
	f.toQosConfigured(t, cid, ids...)
	records := make([][]byte, len(ids))
	for i, id := range ids {
		records[i] = append([]byte{id, uint8(len(metadata))}, metadata...)
	}
	f.controlPoint(cid, op(OpEnable, records...)...)
	require.NoError(t, f.srv.EnableResponse(cid, success(ids...)))
}
