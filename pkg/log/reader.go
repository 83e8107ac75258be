package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// ConnectionID filters by exact connection id match.
	ConnectionID *uint32

	// ServerID filters by server instance.
	ServerID string

	// AseID filters by endpoint.
	AseID *uint8

	// Direction filters by traffic direction.
	Direction *Direction

	// Layer filters by capture layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// Opcode keeps Control Point operations with this opcode.
	Opcode *uint8

	// Phase keeps handover steps of this phase.
	Phase *HandoverPhase

	// FailuresOnly keeps events for which Event.Failed is true.
	FailuresOnly bool

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// Matches returns true if the event matches all filter criteria.
func (f *Filter) Matches(event Event) bool {
	if f.ConnectionID != nil && event.ConnectionID != *f.ConnectionID {
		return false
	}
	if f.ServerID != "" && event.ServerID != f.ServerID {
		return false
	}
	if f.AseID != nil && (event.AseID == nil || *event.AseID != *f.AseID) {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Opcode != nil && (event.Operation == nil || event.Operation.Opcode != *f.Opcode) {
		return false
	}
	if f.Phase != nil && (event.Handover == nil || event.Handover.Phase != *f.Phase) {
		return false
	}
	if f.FailuresOnly && !event.Failed() {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams protocol events from a CBOR log file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
	read    int
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: newDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter, or io.EOF at the
// end of the file. A file cut off in the middle of an event, as left by a
// crashed writer, also ends with io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("event %d: %w", r.read+1, err)
		}
		r.read++
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Each calls fn for every remaining matching event. It stops at the end of
// the file or at the first error returned by fn.
func (r *Reader) Each(fn func(Event) error) error {
	for {
		event, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// Scan opens the log file at path and calls fn for every event matching
// filter.
func Scan(path string, filter Filter, fn func(Event) error) error {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Each(fn)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
