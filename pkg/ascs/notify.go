package ascs

import "github.com/mash-protocol/ascs-go/pkg/cursor"

// AseResult is the outcome of one ASE within a Control Point operation.
type AseResult struct {
	AseID  uint8
	Code   ResponseCode
	Reason Reason
}

// ControlPointNotify accumulates the per-ASE outcomes of a single Control
// Point operation into one notification.
//
// It is reset at the start of every Control Point write and consumed when
// the operation's notification is sent.
type ControlPointNotify struct {
	opcode   Opcode
	results  []AseResult
	aborted  bool
	capacity int
}

// NewControlPointNotify creates an aggregator holding at most capacity
// outcomes.
func NewControlPointNotify(capacity int) *ControlPointNotify {
	return &ControlPointNotify{
		results:  make([]AseResult, 0, capacity),
		capacity: capacity,
	}
}

// Reset clears all outcomes and records the opcode of the new operation.
func (n *ControlPointNotify) Reset(op Opcode) {
	n.opcode = op
	n.results = n.results[:0]
	n.aborted = false
}

// Record stores the outcome for an ASE.
//
// An existing outcome is only replaced while it is still Success, so the
// first failure reported for an ASE wins. Outcomes for new ASEs beyond the
// capacity are dropped. Record is a no-op once the operation is aborted.
func (n *ControlPointNotify) Record(aseID uint8, code ResponseCode, reason Reason) {
	if n.aborted {
		return
	}
	for i := range n.results {
		if n.results[i].AseID == aseID {
			if n.results[i].Code == ResponseSuccess {
				n.results[i].Code = code
				n.results[i].Reason = reason
			}
			return
		}
	}
	if len(n.results) >= n.capacity {
		return
	}
	n.results = append(n.results, AseResult{AseID: aseID, Code: code, Reason: reason})
}

// MarkAborted replaces every recorded outcome with a single whole-operation
// failure carried by the reserved ASE id 0.
func (n *ControlPointNotify) MarkAborted(code ResponseCode) {
	n.results = append(n.results[:0], AseResult{AseID: 0, Code: code, Reason: ReasonNone})
	n.aborted = true
}

// Opcode returns the opcode of the current operation.
func (n *ControlPointNotify) Opcode() Opcode {
	return n.opcode
}

// Aborted reports whether the operation was rejected as a whole.
func (n *ControlPointNotify) Aborted() bool {
	return n.aborted
}

// Len returns the number of recorded outcomes.
func (n *ControlPointNotify) Len() int {
	return len(n.results)
}

// Results returns a copy of the recorded outcomes.
func (n *ControlPointNotify) Results() []AseResult {
	out := make([]AseResult, len(n.results))
	copy(out, n.results)
	return out
}

// Result returns the recorded outcome for aseID.
func (n *ControlPointNotify) Result(aseID uint8) (AseResult, bool) {
	for _, r := range n.results {
		if r.AseID == aseID {
			return r, true
		}
	}
	return AseResult{}, false
}

// Serialize encodes the notification as
// [opcode, count, (aseId, responseCode, reason)...]. It returns false when
// nothing has been recorded.
func (n *ControlPointNotify) Serialize() ([]byte, bool) {
	if len(n.results) == 0 {
		return nil, false
	}

	count := uint8(len(n.results))
	if n.aborted {
		count = AbortedAseCount
	}

	w := cursor.NewWriter(2 + 3*len(n.results))
	w.Write8(uint8(n.opcode))
	w.Write8(count)
	for _, r := range n.results {
		w.Write8(r.AseID)
		w.Write8(uint8(r.Code))
		w.Write8(uint8(r.Reason))
	}
	return w.Bytes(), true
}
