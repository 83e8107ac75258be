package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to a CBOR log file, one item per
// event. Access and notification payloads longer than MaxLogDataSize are
// cut before encoding. A FileLogger may be shared by every server of a
// process.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	enc     *cbor.Encoder
	written int
	failed  int
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, enc: newEncoder(f)}, nil
}

// Log encodes event to the file. Encoding failures are counted and
// otherwise ignored; the engine never waits on its capture.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.enc.Encode(clipPayloads(event)); err != nil {
		l.failed++
		return
	}
	l.written++
}

// Counts returns how many events were written and how many failed to encode.
func (l *FileLogger) Counts() (written, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.failed
}

// Close closes the file. Later calls to Log and Close do nothing.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// clipPayloads truncates oversized access and notification data on a copy
// of the event.
func clipPayloads(e Event) Event {
	if e.Access != nil && len(e.Access.Data) > MaxLogDataSize {
		a := *e.Access
		a.Data, a.Truncated = TruncateData(a.Data)
		e.Access = &a
	}
	if e.Notification != nil && len(e.Notification.Data) > MaxLogDataSize {
		n := *e.Notification
		n.Data, n.Truncated = TruncateData(n.Data)
		e.Notification = &n
	}
	return e
}

var _ Logger = (*FileLogger)(nil)
