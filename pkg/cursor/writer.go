package cursor

import "encoding/binary"

// Writer writes little-endian fields into a fixed-size buffer.
type Writer struct {
	buf     []byte
	pos     int
	overrun bool
}

// NewWriter creates a Writer with a buffer of exactly size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

func (w *Writer) next(n int) []byte {
	if w.overrun || w.pos+n > len(w.buf) {
		w.overrun = true
		return nil
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// Write8 writes one byte.
func (w *Writer) Write8(v uint8) {
	if b := w.next(1); b != nil {
		b[0] = v
	}
}

// Write16 writes a little-endian uint16.
func (w *Writer) Write16(v uint16) {
	if b := w.next(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// Write24 writes the low 24 bits of v, little-endian.
func (w *Writer) Write24(v uint32) {
	if b := w.next(3); b != nil {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	}
}

// WriteBytes copies p into the buffer.
func (w *Writer) WriteBytes(p []byte) {
	if len(p) == 0 {
		return
	}
	if b := w.next(len(p)); b != nil {
		copy(b, p)
	}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.pos
}

// Overrun reports whether any write went past the end of the buffer.
func (w *Writer) Overrun() bool {
	return w.overrun
}

// Bytes returns the written bytes, or nil if the writer overran.
func (w *Writer) Bytes() []byte {
	if w.overrun {
		return nil
	}
	return w.buf[:w.pos]
}
