// Package sequencer maintains a monotonic sequence cursor across HLS
// playlist refreshes and decides which parsed segments are new, stale, or
// duplicate.
package sequencer

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kestrelstream/corerelay/internal/config"
	"github.com/kestrelstream/corerelay/pkg/hlsplaylist"
)

// Config controls sequencer behavior. Zero value is not usable; build one
// from config.SequencerConfig via FromConfig.
type Config struct {
	SeenURLCapacity int
	GCLag           int
	LowLatencyMode  bool
	Logger          *slog.Logger
}

// FromConfig adapts a loaded config.SequencerConfig into a sequencer Config.
func FromConfig(c config.SequencerConfig, logger *slog.Logger) Config {
	gcLag := c.GCLag
	if gcLag <= 0 {
		gcLag = 10
	}
	capacity := c.SeenURLCapacity
	if capacity <= 0 {
		capacity = 2048
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Config{
		SeenURLCapacity: capacity,
		GCLag:           gcLag,
		LowLatencyMode:  c.LowLatencyMode,
		Logger:          logger,
	}
}

// Stats is a snapshot of sequencer counters, safe to read concurrently.
type Stats struct {
	Released        uint64
	Duplicates      uint64
	Stale           uint64
	GCed            uint64
	Reanchors       uint64
	Discontinuities uint64
}

// Sequencer tracks the per-stream sequencing state machine described in
// spec.md §4.3: an ordered map of pending segments, a seen-URL set for
// duplicate suppression, and the next/last cursor pair.
type Sequencer struct {
	cfg Config

	mu              sync.Mutex
	initialized     bool
	nextExpected    int64
	lastProcessed   int64
	pending         *orderedMap
	seen            *lruSet
	paused          bool

	released        atomic.Uint64
	duplicates      atomic.Uint64
	stale           atomic.Uint64
	gced            atomic.Uint64
	reanchors       atomic.Uint64
	discontinuities atomic.Uint64
}

// New creates a Sequencer from cfg.
func New(cfg Config) *Sequencer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sequencer{
		cfg:     cfg,
		pending: newOrderedMap(),
		seen:    newLRUSet(cfg.SeenURLCapacity),
	}
}

// Pause stops Ingest from releasing segments, used for buffer back-pressure
// per spec.md §4.3 "Back-pressure".
func (s *Sequencer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume re-enables releases.
func (s *Sequencer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Result is what Ingest returns for one playlist refresh.
type Result struct {
	// Released are segments ready for download, in strict ascending
	// sequence order.
	Released []hlsplaylist.Segment
	// Reanchored is true if this refresh triggered a discontinuity
	// re-anchor (buffer clear + state reset signal to the caller).
	Reanchored bool
}

// Ingest processes one freshly parsed playlist's segments per spec.md
// §4.3's five-step algorithm and returns the segments ready for download.
func (s *Sequencer) Ingest(segments []hlsplaylist.Segment) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(segments) == 0 {
		return Result{}
	}

	hasDiscontinuity := false
	for _, seg := range segments {
		if seg.Discontinuity {
			hasDiscontinuity = true
			break
		}
	}

	if !s.initialized {
		s.nextExpected = segments[0].MediaSequence
		s.lastProcessed = s.nextExpected - 1
		s.initialized = true
	}

	reanchored := false
	if hasDiscontinuity {
		s.discontinuities.Add(1)
		s.reanchors.Add(1)
		reanchored = true
		last := segments[len(segments)-1]
		s.nextExpected = last.MediaSequence
		s.lastProcessed = s.nextExpected - 1
		s.pending.Clear()
		s.seen.Clear()
		if s.cfg.LowLatencyMode {
			segments = segments[len(segments)-1:]
		}
		s.cfg.Logger.Warn("sequencer reanchored on discontinuity",
			slog.Int64("next_expected_sequence", s.nextExpected))
	}

	for _, seg := range segments {
		if s.seen.Contains(seg.URL) {
			s.duplicates.Add(1)
			s.cfg.Logger.Debug("duplicate segment url skipped", slog.String("url", seg.URL))
			continue
		}
		if seg.MediaSequence <= s.lastProcessed {
			s.stale.Add(1)
			s.cfg.Logger.Debug("stale segment skipped",
				slog.Int64("sequence", seg.MediaSequence), slog.Int64("last_processed", s.lastProcessed))
			continue
		}
		if !s.pending.Insert(seg.MediaSequence, seg) {
			// Exact duplicate sequence number already pending (different
			// URL): first observed wins, per spec.md §4.3 tie-break.
			s.duplicates.Add(1)
			s.cfg.Logger.Warn("duplicate sequence number discarded", slog.Int64("sequence", seg.MediaSequence))
			continue
		}
		s.seen.Add(seg.URL)
	}

	var released []hlsplaylist.Segment
	if !s.paused {
		for {
			seg, ok := s.pending.PeekMin()
			if !ok || seg.MediaSequence != s.nextExpected {
				break
			}
			s.pending.PopMin()
			released = append(released, seg)
			s.released.Add(1)
			s.nextExpected++
			s.lastProcessed++
		}
	}

	gcThreshold := s.lastProcessed - int64(s.cfg.GCLag)
	gced := s.pending.GCBelow(gcThreshold)
	if gced > 0 {
		s.gced.Add(uint64(gced))
		s.cfg.Logger.Warn("garbage-collected stale pending segments",
			slog.Int64("threshold", gcThreshold), slog.Int("count", gced))
	}

	return Result{Released: released, Reanchored: reanchored}
}

// Stats returns a snapshot of sequencer counters.
func (s *Sequencer) Stats() Stats {
	return Stats{
		Released:        s.released.Load(),
		Duplicates:      s.duplicates.Load(),
		Stale:           s.stale.Load(),
		GCed:            s.gced.Load(),
		Reanchors:       s.reanchors.Load(),
		Discontinuities: s.discontinuities.Load(),
	}
}
