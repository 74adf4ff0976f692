package tspacket

// ContinuityResult classifies how a packet's continuity counter relates to
// the last one seen on its PID.
type ContinuityResult int

const (
	// ContinuityOK is the expected (last+1)%16 advance, or the very first
	// packet seen on a PID.
	ContinuityOK ContinuityResult = iota
	// ContinuityDuplicate is the same counter as the last packet with no
	// payload — a valid duplicate per spec.md §4.4.
	ContinuityDuplicate
	// ContinuityError is the same counter as the last packet but with a
	// payload, which is not valid.
	ContinuityError
	// ContinuityGap is any other counter value, indicating dropped packets.
	ContinuityGap
)

// continuityTracker remembers the last continuity counter seen per PID.
type continuityTracker struct {
	last map[int]uint8
	seen map[int]bool
}

func newContinuityTracker() *continuityTracker {
	return &continuityTracker{last: make(map[int]uint8), seen: make(map[int]bool)}
}

// Check validates p's continuity counter against this PID's history and
// records it for the next call.
func (t *continuityTracker) Check(p Packet) ContinuityResult {
	result := ContinuityOK
	if t.seen[p.PID] {
		last := t.last[p.PID]
		expected := (last + 1) % 16
		switch {
		case p.ContinuityCounter == expected:
			result = ContinuityOK
		case p.ContinuityCounter == last:
			if p.HasPayload() {
				result = ContinuityError
			} else {
				result = ContinuityDuplicate
			}
		default:
			result = ContinuityGap
		}
	}
	t.last[p.PID] = p.ContinuityCounter
	t.seen[p.PID] = true
	return result
}

// Reset clears all per-PID history, used on discontinuity.
func (t *continuityTracker) Reset() {
	t.last = make(map[int]uint8)
	t.seen = make(map[int]bool)
}
