// Package cursor provides bounded little-endian readers and writers over
// octet buffers.
//
// Neither side ever reads or writes past the end of its buffer. An access
// that would overrun sets a sticky overrun flag and yields zero values, so
// decoders can parse a whole record and check the flag once at the end:
//
//	r := cursor.NewReader(data)
//	op := r.Read8()
//	num := r.Read8()
//	if r.Overrun() {
//	    // malformed input
//	}
//
// 24-bit fields are common in Bluetooth LE Audio (SDU interval, presentation
// delay) and have dedicated accessors.
package cursor
