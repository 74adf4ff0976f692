package sequencer

import (
	"log/slog"
	"sync"

	"github.com/kestrelstream/corerelay/pkg/hlsplaylist"
)

// AdBreakTracker tracks ad-break entry/exit across playlist refreshes from
// SCTE35AdStart/SCTE35AdEnd markers, which by themselves only describe one
// segment at a time. It is a supplemented feature (spec.md is silent on
// cross-refresh ad state). It uses only those markers, applies no duration
// or URL-pattern heuristics, and runs for every released segment;
// SequencerConfig.AdBreakHeuristics is not read by it.
type AdBreakTracker struct {
	mu     sync.Mutex
	inAd   bool
	logger *slog.Logger

	entries uint64
	exits   uint64
}

// NewAdBreakTracker creates a tracker. A nil logger falls back to
// slog.Default.
func NewAdBreakTracker(logger *slog.Logger) *AdBreakTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdBreakTracker{logger: logger}
}

// Observe updates ad-break state from a released segment's markers. It
// returns true if this segment is inside an ad break (including the
// segment that starts or ends one).
func (t *AdBreakTracker) Observe(seg hlsplaylist.Segment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seg.SCTE35AdStart && !t.inAd {
		t.inAd = true
		t.entries++
		t.logger.Info("ad break entered", slog.Int64("sequence", seg.MediaSequence))
	}

	inAd := t.inAd

	if seg.SCTE35AdEnd && t.inAd {
		t.inAd = false
		t.exits++
		t.logger.Info("ad break exited", slog.Int64("sequence", seg.MediaSequence))
	}

	return inAd
}

// InAdBreak reports the tracker's current state.
func (t *AdBreakTracker) InAdBreak() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inAd
}

// AdBreakStats is a snapshot of ad-break transition counters.
type AdBreakStats struct {
	Entries uint64
	Exits   uint64
	Active  bool
}

// Stats returns a snapshot of the tracker's counters.
func (t *AdBreakTracker) Stats() AdBreakStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return AdBreakStats{Entries: t.entries, Exits: t.exits, Active: t.inAd}
}
