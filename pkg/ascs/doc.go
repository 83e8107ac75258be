// Package ascs implements the Audio Stream Endpoint engine of a Bluetooth
// LE Audio Stream Control Service server.
//
// A Server tracks a bounded set of client links. Each link owns a fixed
// array of Audio Stream Endpoints (ASEs) and one ASE Control Point. Client
// traffic enters through HandleAccess; the Server answers and notifies
// through a Transport.
//
// # Control Point Operations
//
// A Control Point write carries one opcode and a list of per-ASE records.
// Every record is checked against the state legality table and the field
// ranges of its opcode. Valid records are forwarded to the Application as
// a single Indication:
//
//	srv, _ := ascs.NewServer(ascs.DefaultConfig(), app, defaults, transport)
//	srv.HandleAccess(ascs.AccessRequest{
//		CID:    cid,
//		Handle: srv.Handles().ControlPoint(),
//		Type:   ascs.AccessWrite,
//		Value:  value,
//	})
//
// The ASE state does not change until the Application answers with the
// matching response method (ConfigureCodecResponse, EnableResponse, ...).
// The response records the final outcome of every ASE, sends the Control
// Point notification and applies the transitions.
//
// Release, Disable and Receiver Start Ready on sink ASEs are completed by
// the Server itself right after the Indication.
//
// # Server Initiated Changes
//
// The Application may drive ASEs without a client operation through the
// request methods (ConfigureCodecRequest, DisableRequest, ReleaseRequest,
// ...). ReleaseComplete moves a Releasing ASE back to Idle, or to Codec
// Configured when its codec configuration is cached.
//
// # Characteristic Values
//
// The ASE characteristic value depends on the state. GetAseData builds it
// and ParseAseValue decodes it. A subscribed client is notified after
// every state change.
//
// # Handover
//
// Handover moves the state of a link to the peer device of a stereo pair.
// Records are CBOR encoded by package wire and may be streamed in windows
// of any size. Handover is vetoed while any ASE is Enabling, Disabling or
// Releasing.
//
// # Concurrency
//
// A Server is not safe for concurrent use. Callers serialize all entry
// points; package bleadapter does so with a mutex.
package ascs
