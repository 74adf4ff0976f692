package sequencer

import "github.com/kestrelstream/corerelay/pkg/hlsplaylist"

// orderedMap is a minimal sequence-number-keyed ordered map: insertion by
// key, peek/pop of the smallest key, and range-deletion below a threshold.
// Go's standard library has no ordered map and none of the reference
// corpus imports one, so this is hand-rolled at the same scale as the
// teacher's own small hand-rolled data structures (e.g. its ring buffer).
//
// Backed by a map plus a sorted slice of keys; segment counts between
// refreshes are small (tens, not thousands), so linear re-sort on insert is
// not a concern.
type orderedMap struct {
	entries map[int64]hlsplaylist.Segment
	keys    []int64 // kept sorted ascending
}

func newOrderedMap() *orderedMap {
	return &orderedMap{entries: make(map[int64]hlsplaylist.Segment)}
}

// Insert adds seg keyed by its sequence number. Returns false if a segment
// is already pending at that key (the first observed wins, per spec.md
// §4.3's duplicate-sequence tie-break).
func (m *orderedMap) Insert(key int64, seg hlsplaylist.Segment) bool {
	if _, exists := m.entries[key]; exists {
		return false
	}
	m.entries[key] = seg
	i := 0
	for i < len(m.keys) && m.keys[i] < key {
		i++
	}
	m.keys = append(m.keys, 0)
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
	return true
}

// PeekMin returns the segment with the smallest pending key, without
// removing it.
func (m *orderedMap) PeekMin() (hlsplaylist.Segment, bool) {
	if len(m.keys) == 0 {
		return hlsplaylist.Segment{}, false
	}
	return m.entries[m.keys[0]], true
}

// PopMin removes and discards the smallest pending key.
func (m *orderedMap) PopMin() {
	if len(m.keys) == 0 {
		return
	}
	key := m.keys[0]
	m.keys = m.keys[1:]
	delete(m.entries, key)
}

// GCBelow removes all entries with key < threshold, returning the count
// removed.
func (m *orderedMap) GCBelow(threshold int64) int {
	removed := 0
	kept := m.keys[:0]
	for _, key := range m.keys {
		if key < threshold {
			delete(m.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	m.keys = kept
	return removed
}

// Clear empties the map.
func (m *orderedMap) Clear() {
	m.entries = make(map[int64]hlsplaylist.Segment)
	m.keys = nil
}
