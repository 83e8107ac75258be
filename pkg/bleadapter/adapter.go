package bleadapter

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/currantlabs/ble"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
)

// Service and characteristic UUIDs.
var (
	ServiceUUID      = ble.UUID16(0x184E)
	SinkAseUUID      = ble.UUID16(0x2BC4)
	SourceAseUUID    = ble.UUID16(0x2BC5)
	ControlPointUUID = ble.UUID16(0x2BC6)
)

type notifierKey struct {
	cid    uint32
	handle uint16
}

// Adapter connects an ascs.Server to GATT.
type Adapter struct {
	mu      sync.Mutex
	srv     *ascs.Server
	logger  *slog.Logger
	nextCID uint32

	cids      map[string]uint32
	watched   map[string]bool
	notifiers map[notifierKey]ble.Notifier

	// rsp is the response writer of the access being served.
	rsp       ble.ResponseWriter
	rspHandle uint16
}

// New creates an Adapter and the Server behind it.
func New(cfg ascs.Config, app ascs.Application, defaults ascs.CodecDefaults) (*Adapter, error) {
	a := &Adapter{
		logger:    cfg.Logger,
		cids:      make(map[string]uint32),
		watched:   make(map[string]bool),
		notifiers: make(map[notifierKey]ble.Notifier),
	}
	srv, err := ascs.NewServer(cfg, app, defaults, a)
	if err != nil {
		return nil, err
	}
	a.srv = srv
	return a, nil
}

// Do runs fn with exclusive access to the Server.
func (a *Adapter) Do(fn func(srv *ascs.Server)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.srv)
}

// ConnectionID returns the engine connection id of a remote address.
func (a *Adapter) ConnectionID(addr string) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cid, ok := a.cids[strings.ToUpper(addr)]
	return cid, ok
}

// Service builds the GATT service.
func (a *Adapter) Service() *ble.Service {
	s := ble.NewService(ServiceUUID)
	h := a.srv.Handles()

	for id := uint8(1); int(id) <= a.srv.MaxAses(); id++ {
		u := SinkAseUUID
		if ascs.DirectionOf(id) == ascs.DirectionSource {
			u = SourceAseUUID
		}
		c := ble.NewCharacteristic(u)
		c.HandleRead(a.readHandler(h.AseValue(id)))
		c.HandleNotify(a.notifyHandler(h.AseValue(id), h.AseCCCD(id)))
		// ASE characteristics repeat their UUID, which AddCharacteristic refuses.
		s.Characteristics = append(s.Characteristics, c)
	}

	cp := ble.NewCharacteristic(ControlPointUUID)
	cp.HandleWrite(a.writeHandler(h.ControlPoint()))
	cp.HandleNotify(a.notifyHandler(h.ControlPoint(), h.ControlPointCCCD()))
	s.AddCharacteristic(cp)
	return s
}

func (a *Adapter) readHandler(handle uint16) ble.ReadHandlerFunc {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		a.access(req, rsp, ascs.AccessRequest{
			Handle: handle,
			Type:   ascs.AccessRead,
			Offset: uint16(req.Offset()),
		})
	}
}

func (a *Adapter) writeHandler(handle uint16) ble.WriteHandlerFunc {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		a.access(req, rsp, ascs.AccessRequest{
			Handle: handle,
			Type:   ascs.AccessWrite,
			Value:  req.Data(),
		})
	}
}

// notifyHandler serves a subscription for its lifetime. Subscribing writes
// Notify to the descriptor; the end of the subscription clears it.
func (a *Adapter) notifyHandler(handle, cccd uint16) ble.NotifyHandlerFunc {
	return func(req ble.Request, n ble.Notifier) {
		a.mu.Lock()
		cid := a.cidFor(req.Conn())
		key := notifierKey{cid: cid, handle: handle}
		a.notifiers[key] = n
		a.srv.HandleAccess(ascs.AccessRequest{CID: cid, Handle: cccd, Type: ascs.AccessWrite, Value: []byte{0x01, 0x00}})
		a.mu.Unlock()

		<-n.Context().Done()

		a.mu.Lock()
		defer a.mu.Unlock()
		if a.notifiers[key] != n {
			return
		}
		delete(a.notifiers, key)
		if a.srv.Connection(cid) != nil {
			a.srv.HandleAccess(ascs.AccessRequest{CID: cid, Handle: cccd, Type: ascs.AccessWrite, Value: []byte{0x00, 0x00}})
		}
	}
}

func (a *Adapter) access(req ble.Request, rsp ble.ResponseWriter, ar ascs.AccessRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ar.CID = a.cidFor(req.Conn())
	a.rsp, a.rspHandle = rsp, ar.Handle
	a.srv.HandleAccess(ar)
	a.rsp = nil
}

// Restore binds a bonded client's address to cid and restores its
// descriptor values before the link comes up.
func (a *Adapter) Restore(addr string, cid uint32, cfg *ascs.ClientConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr = strings.ToUpper(addr)
	if err := a.srv.AddConfig(cid, cfg); err != nil {
		return err
	}
	a.cids[addr] = cid
	a.debugLog("bonded client restored", "addr", addr, "cid", cid)
	return nil
}

// cidFor returns the connection id of a link, assigning one on first use.
// Must be called with a.mu held.
func (a *Adapter) cidFor(conn ble.Conn) uint32 {
	addr := strings.ToUpper(conn.RemoteAddr().String())
	cid, ok := a.cids[addr]
	if !ok {
		cid = a.allocCID()
		a.cids[addr] = cid
		a.debugLog("link attached", "addr", addr, "cid", cid)
	}
	if !a.watched[addr] {
		a.watched[addr] = true
		go a.watch(conn.Disconnected(), addr, cid)
	}
	return cid
}

// allocCID returns the next id not bound to an address.
func (a *Adapter) allocCID() uint32 {
	for {
		a.nextCID++
		if a.nextCID == ascs.InvalidConnectionID {
			continue
		}
		inUse := false
		for _, cid := range a.cids {
			if cid == a.nextCID {
				inUse = true
				break
			}
		}
		if !inUse {
			return a.nextCID
		}
	}
}

func (a *Adapter) watch(done <-chan struct{}, addr string, cid uint32) {
	<-done

	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cids, addr)
	delete(a.watched, addr)
	for k := range a.notifiers {
		if k.cid == cid {
			delete(a.notifiers, k)
		}
	}
	a.srv.Disconnect(cid)
	a.debugLog("link detached", "addr", addr, "cid", cid)
}

// AccessResponse completes the access being served. Called by the Server
// with a.mu held.
func (a *Adapter) AccessResponse(cid uint32, handle uint16, result ascs.ATTResult, value []byte) {
	if a.rsp == nil || handle != a.rspHandle {
		return
	}
	if result != ascs.ATTSuccess {
		a.rsp.SetStatus(ble.ATTError(result))
	} else if len(value) > 0 {
		if _, err := a.rsp.Write(value); err != nil {
			a.debugLog("response write failed", "cid", cid, "handle", handle, "error", err)
		}
	}
	a.rsp = nil
}

// Notify sends a notification to a subscribed link. Called by the Server
// with a.mu held.
func (a *Adapter) Notify(cid uint32, handle uint16, value []byte) {
	n, ok := a.notifiers[notifierKey{cid: cid, handle: handle}]
	if !ok {
		a.debugLog("notification without subscriber", "cid", cid, "handle", handle)
		return
	}
	if _, err := n.Write(value); err != nil {
		a.debugLog("notification failed", "cid", cid, "handle", handle, "error", err)
	}
}

// debugLog logs a debug message if logging is enabled.
func (a *Adapter) debugLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

var _ ascs.Transport = (*Adapter)(nil)
