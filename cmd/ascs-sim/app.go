package main

import (
	"sync"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
)

// autoApp queues indications and answers them from drain. Every operation
// succeeds unless a rejection code is set.
type autoApp struct {
	mu      sync.Mutex
	info    ascs.ServerCodecInfo
	pending []ascs.Indication

	// reject answers every operation with this code when non-zero.
	reject ascs.ResponseCode

	// releaseComplete finishes releases without waiting for the user.
	releaseComplete bool

	// cacheCodec keeps the codec configuration on automatic release.
	cacheCodec bool

	// onConfigComplete is called when a client has written every
	// descriptor.
	onConfigComplete func(cid uint32)
}

func newAutoApp(info ascs.ServerCodecInfo) *autoApp {
	return &autoApp{info: info, releaseComplete: true}
}

// Indicate is called by the server with the adapter lock held.
func (a *autoApp) Indicate(ind ascs.Indication) {
	if c, ok := ind.(*ascs.CCCDChangeIndication); ok {
		if c.ConfigComplete && a.onConfigComplete != nil {
			a.onConfigComplete(c.CID)
		}
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, ind)
	a.mu.Unlock()
}

func (a *autoApp) next() ascs.Indication {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return nil
	}
	ind := a.pending[0]
	a.pending = a.pending[1:]
	return ind
}

// drain answers every queued indication. It returns the number answered.
func (a *autoApp) drain(srv *ascs.Server) int {
	n := 0
	for ind := a.next(); ind != nil; ind = a.next() {
		a.respond(srv, ind)
		n++
	}
	return n
}

func (a *autoApp) result(aseID uint8) ascs.AseResult {
	r := ascs.AseResult{AseID: aseID, Code: ascs.ResponseSuccess}
	if a.reject != ascs.ResponseSuccess {
		r.Code = a.reject
	}
	return r
}

func (a *autoApp) respond(srv *ascs.Server, ind ascs.Indication) {
	cid := ind.ConnectionID()
	switch ind := ind.(type) {
	case *ascs.ConfigureCodecIndication:
		results := make([]ascs.CodecResult, len(ind.Ases))
		for i, p := range ind.Ases {
			info := a.info
			info.Configuration = p.Configuration
			results[i] = ascs.CodecResult{Result: a.result(p.AseID), Server: info}
		}
		_ = srv.ConfigureCodecResponse(cid, results)

	case *ascs.ConfigureQosIndication:
		results := make([]ascs.QosResult, len(ind.Ases))
		for i, p := range ind.Ases {
			results[i] = ascs.QosResult{Result: a.result(p.AseID), Qos: p.Qos}
		}
		_ = srv.ConfigureQosResponse(cid, results)

	case *ascs.EnableIndication:
		_ = srv.EnableResponse(cid, a.metadataResults(ind.Ases))

	case *ascs.UpdateMetadataIndication:
		_ = srv.UpdateMetadataResponse(cid, a.metadataResults(ind.Ases))

	case *ascs.GenericIndication:
		results := make([]ascs.AseResult, len(ind.AseIDs))
		for i, id := range ind.AseIDs {
			results[i] = a.result(id)
		}
		switch ind.Opcode {
		case ascs.OpReceiverStartReady:
			_ = srv.ReceiverReadyResponse(cid, results)
		case ascs.OpDisable:
			_ = srv.DisableResponse(cid, results)
		case ascs.OpReceiverStopReady:
			_ = srv.ReceiverStopReadyResponse(cid, results)
		case ascs.OpRelease:
			if !a.releaseComplete {
				return
			}
			params := make([]ascs.ReleaseCompleteParams, len(ind.AseIDs))
			for i, id := range ind.AseIDs {
				params[i] = ascs.ReleaseCompleteParams{AseID: id, CacheCodec: a.cacheCodec}
			}
			_ = srv.ReleaseComplete(cid, params)
		}
	}
}

func (a *autoApp) metadataResults(ases []ascs.MetadataParams) []ascs.AseResult {
	results := make([]ascs.AseResult, len(ases))
	for i, p := range ases {
		results[i] = a.result(p.AseID)
	}
	return results
}

// staticDefaults reports the configured codec preferences for every ASE.
type staticDefaults struct {
	info ascs.ServerCodecInfo
}

func (d staticDefaults) ServerCodecInfo(uint32, uint8) (ascs.ServerCodecInfo, bool) {
	return d.info, true
}
