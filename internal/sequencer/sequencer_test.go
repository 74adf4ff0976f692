package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelstream/corerelay/pkg/hlsplaylist"
)

func testSequencer() *Sequencer {
	return New(Config{SeenURLCapacity: 100, GCLag: 10})
}

func seg(seq int64, url string) hlsplaylist.Segment {
	return hlsplaylist.Segment{URL: url, MediaSequence: seq}
}

func TestIngest_AnchorsOnFirstRefresh(t *testing.T) {
	s := testSequencer()
	res := s.Ingest([]hlsplaylist.Segment{seg(100, "a"), seg(101, "b"), seg(102, "c")})
	require.Len(t, res.Released, 3)
	assert.Equal(t, int64(100), res.Released[0].MediaSequence)
	assert.Equal(t, int64(102), res.Released[2].MediaSequence)
}

func TestIngest_SkipsAlreadyReleasedOnNextRefresh(t *testing.T) {
	s := testSequencer()
	s.Ingest([]hlsplaylist.Segment{seg(100, "a"), seg(101, "b"), seg(102, "c")})
	res := s.Ingest([]hlsplaylist.Segment{seg(101, "b"), seg(102, "c"), seg(103, "d")})
	require.Len(t, res.Released, 1)
	assert.Equal(t, int64(103), res.Released[0].MediaSequence)
}

func TestIngest_DuplicateURLSkipped(t *testing.T) {
	s := testSequencer()
	s.Ingest([]hlsplaylist.Segment{seg(100, "a")})
	res := s.Ingest([]hlsplaylist.Segment{seg(101, "a")}) // same URL, different seq
	assert.Empty(t, res.Released)
	assert.Equal(t, uint64(1), s.Stats().Duplicates)
}

func TestIngest_OutOfOrderArrivalReleasesInOrder(t *testing.T) {
	s := testSequencer()
	// Segment 102 arrives before 101 (simulated via two calls where 101 is
	// withheld then supplied), so 102 waits in the pending map.
	res1 := s.Ingest([]hlsplaylist.Segment{seg(100, "a"), seg(102, "c")})
	require.Len(t, res1.Released, 1)
	assert.Equal(t, int64(100), res1.Released[0].MediaSequence)

	res2 := s.Ingest([]hlsplaylist.Segment{seg(101, "b"), seg(102, "c")})
	require.Len(t, res2.Released, 2)
	assert.Equal(t, int64(101), res2.Released[0].MediaSequence)
	assert.Equal(t, int64(102), res2.Released[1].MediaSequence)
}

func TestIngest_DiscontinuityReanchors(t *testing.T) {
	s := testSequencer()
	s.Ingest([]hlsplaylist.Segment{seg(100, "a"), seg(101, "b")})

	disc := seg(200, "x")
	disc.Discontinuity = true
	res := s.Ingest([]hlsplaylist.Segment{disc})
	assert.True(t, res.Reanchored)
	require.Len(t, res.Released, 1)
	assert.Equal(t, int64(200), res.Released[0].MediaSequence)
}

func TestIngest_DiscontinuityLowLatencyKeepsOnlyLastSegment(t *testing.T) {
	s := New(Config{SeenURLCapacity: 100, GCLag: 10, LowLatencyMode: true})
	s.Ingest([]hlsplaylist.Segment{seg(100, "a")})

	segs := []hlsplaylist.Segment{seg(200, "x"), seg(201, "y"), seg(202, "z")}
	segs[0].Discontinuity = true
	res := s.Ingest(segs)
	require.Len(t, res.Released, 1)
	assert.Equal(t, int64(202), res.Released[0].MediaSequence)
}

func TestIngest_PausedHoldsReleases(t *testing.T) {
	s := testSequencer()
	s.Pause()
	res := s.Ingest([]hlsplaylist.Segment{seg(100, "a"), seg(101, "b")})
	assert.Empty(t, res.Released)

	s.Resume()
	res2 := s.Ingest([]hlsplaylist.Segment{seg(102, "c")})
	require.Len(t, res2.Released, 3)
}

func TestIngest_EmptyRefreshIsNoop(t *testing.T) {
	s := testSequencer()
	res := s.Ingest(nil)
	assert.Empty(t, res.Released)
}

func TestAdBreakTracker_EntryAndExit(t *testing.T) {
	tr := NewAdBreakTracker(nil)
	s1 := seg(1, "a")
	s1.SCTE35AdStart = true
	assert.True(t, tr.Observe(s1))
	assert.True(t, tr.InAdBreak())

	s2 := seg(2, "b")
	assert.True(t, tr.Observe(s2))

	s3 := seg(3, "c")
	s3.SCTE35AdEnd = true
	assert.True(t, tr.Observe(s3)) // still counted as in-break on the exit segment itself
	assert.False(t, tr.InAdBreak())

	stats := tr.Stats()
	assert.Equal(t, uint64(1), stats.Entries)
	assert.Equal(t, uint64(1), stats.Exits)
}
