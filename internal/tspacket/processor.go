package tspacket

import (
	"context"
	"log/slog"
	"time"

	"github.com/kestrelstream/corerelay/internal/observability"
)

// Stats is a snapshot of per-stream processing counters.
type Stats struct {
	SegmentsProcessed uint64
	SegmentsSkipped   uint64 // no sync found
	PacketsEmitted    uint64
	ContinuityErrors  uint64
	ContinuityGaps    uint64
	FramesNumbered    uint64
	KeyFrames         uint64
}

// StreamState carries the per-stream state the processor needs across
// segments: PID-kind memoisation, continuity-counter history, and frame
// counters. One StreamState per live stream; not safe for concurrent use,
// matching the ingester's single-goroutine-per-stream contract.
type StreamState struct {
	logger *slog.Logger
	now    func() time.Time

	pidKind      map[int]StreamKind
	continuity   *continuityTracker
	globalFrame  int64
	segmentFrame int64
	lastFrameAt  time.Time

	stats Stats
}

// NewStreamState creates fresh processing state for one stream. A nil
// logger falls back to slog.Default.
func NewStreamState(logger *slog.Logger) *StreamState {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamState{
		logger:     logger,
		now:        time.Now,
		pidKind:    make(map[int]StreamKind),
		continuity: newContinuityTracker(),
	}
}

// Reset clears PID classification, continuity history and the segment-local
// frame counter, as required on a discontinuity. The global frame counter
// is never reset: it is monotonic across the stream's lifetime.
func (s *StreamState) Reset() {
	s.pidKind = make(map[int]StreamKind)
	s.continuity.Reset()
	s.segmentFrame = 0
}

// ProcessSegment scans data for TS packets and tags each one per spec.md
// §4.4. firstSegment resets the segment-local frame counter to zero (it
// also resets naturally via Reset on discontinuity).
func (s *StreamState) ProcessSegment(data []byte, firstSegment bool) []Packet {
	if firstSegment {
		s.segmentFrame = 0
	}

	raw, err := Scan(data, s.logger)
	if err != nil {
		s.stats.SegmentsSkipped++
		return nil
	}
	s.stats.SegmentsProcessed++

	trace := s.logger.Enabled(context.Background(), observability.LevelTrace)

	packets := make([]Packet, 0, len(raw))
	for _, r := range raw {
		p := ParseHeader(r)
		if !p.SyncValid {
			continue
		}

		continuity := s.continuity.Check(p)
		p.Continuity = continuity
		switch continuity {
		case ContinuityError:
			s.stats.ContinuityErrors++
		case ContinuityGap:
			s.stats.ContinuityGaps++
		}

		s.classify(&p)

		if p.Kind == KindVideo && p.PayloadUnitStart {
			s.tagFrame(&p)
		}

		if trace {
			s.logger.Log(context.Background(), observability.LevelTrace, "packet processed",
				slog.Int("pid", p.PID), slog.Int("kind", int(p.Kind)),
				slog.Int("continuity", int(continuity)))
		}

		packets = append(packets, p)
		s.stats.PacketsEmitted++
	}

	return packets
}

func (s *StreamState) classify(p *Packet) {
	if kind, ok := s.pidKind[p.PID]; ok {
		p.Kind = kind
		return
	}
	if !p.PayloadUnitStart {
		return
	}
	kind := classifyPID(p.Payload())
	if kind != KindUnknown {
		s.pidKind[p.PID] = kind
		p.Kind = kind
	}
}

func (s *StreamState) tagFrame(p *Packet) {
	p.IsFrameStart = true
	s.globalFrame++
	s.segmentFrame++
	p.GlobalFrameNumber = s.globalFrame
	p.SegmentFrameNumber = s.segmentFrame
	p.KeyFrame = isKeyFrame(p.Payload())

	now := s.now()
	if !s.lastFrameAt.IsZero() {
		p.EstimatedDuration = now.Sub(s.lastFrameAt).Nanoseconds()
	}
	s.lastFrameAt = now

	s.stats.FramesNumbered++
	if p.KeyFrame {
		s.stats.KeyFrames++
	}
}

// Stats returns a snapshot of this stream's processing counters.
func (s *StreamState) Stats() Stats {
	return s.stats
}
