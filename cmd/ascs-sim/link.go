package main

import (
	"context"
	"fmt"
	"io"

	"github.com/currantlabs/ble"
)

const simMTU = 64

// simLink is a simulated client connection.
type simLink struct {
	ctx  context.Context
	addr string
	done chan struct{}

	// subs ends the link's subscriptions.
	subs []context.CancelFunc
}

func newSimLink(addr string) *simLink {
	return &simLink{ctx: context.Background(), addr: addr, done: make(chan struct{})}
}

func (l *simLink) Context() context.Context          { return l.ctx }
func (l *simLink) SetContext(ctx context.Context)    { l.ctx = ctx }
func (l *simLink) LocalAddr() ble.Addr               { return ble.NewAddr("00:00:00:00:00:00") }
func (l *simLink) RemoteAddr() ble.Addr              { return ble.NewAddr(l.addr) }
func (l *simLink) RxMTU() int                        { return simMTU }
func (l *simLink) SetRxMTU(int)                      {}
func (l *simLink) TxMTU() int                        { return simMTU }
func (l *simLink) SetTxMTU(int)                      {}
func (l *simLink) Disconnected() <-chan struct{}     { return l.done }
func (l *simLink) Read(p []byte) (n int, err error)  { return 0, io.EOF }
func (l *simLink) Write(p []byte) (n int, err error) { return len(p), nil }

func (l *simLink) Close() error {
	l.unsubscribe()
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *simLink) unsubscribe() {
	for _, cancel := range l.subs {
		cancel()
	}
	l.subs = nil
}

// printNotifier prints notifications received by a simulated client.
type printNotifier struct {
	ctx   context.Context
	out   io.Writer
	addr  string
	label string
}

func (n *printNotifier) Context() context.Context { return n.ctx }
func (n *printNotifier) Close() error             { return nil }
func (n *printNotifier) Cap() int                 { return simMTU - 3 }

func (n *printNotifier) Write(b []byte) (int, error) {
	fmt.Fprintf(n.out, "[%s] %s notify: % X\n", n.addr, n.label, b)
	return len(b), nil
}

// bufferWriter collects a GATT response.
type bufferWriter struct {
	data   []byte
	status ble.ATTError
}

func (w *bufferWriter) Write(b []byte) (int, error) {
	w.data = append(w.data, b...)
	return len(b), nil
}
func (w *bufferWriter) Status() ble.ATTError          { return w.status }
func (w *bufferWriter) SetStatus(status ble.ATTError) { w.status = status }
func (w *bufferWriter) Len() int                      { return len(w.data) }
func (w *bufferWriter) Cap() int                      { return simMTU - 1 }
