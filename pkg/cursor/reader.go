package cursor

import "encoding/binary"

// Reader reads little-endian fields from a byte slice.
type Reader struct {
	data    []byte
	pos     int
	overrun bool
}

// NewReader creates a Reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// take returns the next n bytes, or nil and sets the overrun flag if fewer
// than n remain. Once overrun, every further access fails.
func (r *Reader) take(n int) []byte {
	if r.overrun || n < 0 || r.pos+n > len(r.data) {
		r.overrun = true
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Read8 reads one byte.
func (r *Reader) Read8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Read16 reads a little-endian uint16.
func (r *Reader) Read16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Read24 reads a little-endian 24-bit value.
func (r *Reader) Read24() uint32 {
	b := r.take(3)
	if b == nil {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// ReadBytes returns a copy of the next n bytes. A zero length yields nil.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.overrun {
		return 0
	}
	return len(r.data) - r.pos
}

// Overrun reports whether any read went past the end of the buffer.
func (r *Reader) Overrun() bool {
	return r.overrun
}
