// Package bleadapter exposes an ascs.Server as a GATT service on a
// github.com/currantlabs/ble device.
//
// The adapter builds the Audio Stream Control Service with one ASE
// characteristic per ASE (odd ids as Sink ASE, even ids as Source ASE) and
// the ASE Control Point. It maps each remote address to an engine
// connection id and turns subscriptions into descriptor writes.
//
// GATT handlers run on library goroutines. The adapter serializes every
// engine call with a mutex; application code reaches the Server through
// Do:
//
//	a, _ := bleadapter.New(ascs.DefaultConfig(), app, defaults)
//	dev.AddService(a.Service())
//	...
//	a.Do(func(srv *ascs.Server) {
//		srv.EnableResponse(cid, results)
//	})
package bleadapter
