// Package stream wires the ingester, sequencer, TS packet processor, PID
// filter, buffer and player pipeline into one running stream per spec.md
// §5's concurrency model: one ingester goroutine, one writer goroutine and
// one player-health goroutine, coordinated by three atomics. The only other
// state the ingester and writer share is the mutex-guarded packet buffer.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kestrelstream/corerelay/internal/config"
	"github.com/kestrelstream/corerelay/internal/metrics"
	"github.com/kestrelstream/corerelay/internal/pidfilter"
	"github.com/kestrelstream/corerelay/internal/player"
	"github.com/kestrelstream/corerelay/internal/resource"
	"github.com/kestrelstream/corerelay/internal/sequencer"
	"github.com/kestrelstream/corerelay/internal/tsbuffer"
	"github.com/kestrelstream/corerelay/internal/tspacket"
	"github.com/kestrelstream/corerelay/pkg/hlsplaylist"
	"github.com/kestrelstream/corerelay/pkg/httpfetch"
)

// Completion describes why a Session stopped.
type Completion int

const (
	// CompletedNormal means the upstream playlist ended (EXT-X-ENDLIST)
	// and all segments drained through the player cleanly.
	CompletedNormal Completion = iota
	// CompletedFailed means the stream stopped due to an unrecoverable
	// error: playlist failures exceeding the configured tolerance, or the
	// player process dying.
	CompletedFailed
	// CompletedCancelled means the caller's context was cancelled.
	CompletedCancelled
)

func (c Completion) String() string {
	switch c {
	case CompletedNormal:
		return "normal"
	case CompletedFailed:
		return "failed"
	case CompletedCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is returned by Session.Run once the stream has stopped.
type Result struct {
	Completed Completion
	Reason    string
}

// Config bundles everything one Session needs. Sub-configs are built via
// each package's own FromConfig so defaults stay centralized there.
type Config struct {
	PlaylistURL            string
	RefreshInterval        time.Duration
	MaxConsecutiveFailures int
	MediaSequenceBase      int64

	HTTP      httpfetch.Config
	Sequencer sequencer.Config
	PIDFilter pidfilter.Config
	Buffer    tsbuffer.Config
	Player    player.Config

	Resource *resource.Coordinator
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// FromConfig adapts a fully loaded config.Config plus a playlist URL into
// a stream Config, deferring every sub-concern's defaulting to its own
// package.
func FromConfig(c *config.Config, playlistURL string, coordinator *resource.Coordinator, reg *metrics.Registry, logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	refresh := c.Playlist.RefreshInterval.Duration()
	if refresh <= 0 {
		refresh = 1200 * time.Millisecond
	}
	maxFailures := c.Playlist.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return Config{
		PlaylistURL:            playlistURL,
		RefreshInterval:        refresh,
		MaxConsecutiveFailures: maxFailures,

		HTTP:      httpfetch.FromConfig(c.HTTP, logger),
		Sequencer: sequencer.FromConfig(c.Sequencer, logger),
		PIDFilter: pidfilter.FromConfig(c.PIDFilter, logger),
		Buffer:    tsbuffer.FromConfig(c.Buffer),
		Player:    player.FromConfig(c.Player, logger),

		Resource: coordinator,
		Metrics:  reg,
		Logger:   logger,
	}
}

// Session runs one end-to-end restream of a single HLS source to one
// player process.
type Session struct {
	id  string
	cfg Config

	fetcher   *httpfetch.Client
	seq       *sequencer.Sequencer
	filter    *pidfilter.Filter
	buf       *tsbuffer.Buffer
	streamSt  *tspacket.StreamState
	adTracker *sequencer.AdBreakTracker

	cancelToken atomic.Bool
	endOfStream atomic.Bool
	playerDead  atomic.Bool

	firstSegment bool

	// prevPacketStats/prevSeqStats are the last observed snapshots used to
	// turn tspacket's and sequencer's cumulative counters into Prometheus
	// counter increments (Add wants deltas, the snapshots are totals).
	prevPacketStats tspacket.Stats
	prevSeqStats    sequencer.Stats
}

// New constructs a Session. The player process and its health monitor are
// not started until Run is called.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger
	return &Session{
		id:           uuid.NewString(),
		cfg:          cfg,
		fetcher:      httpfetch.New(cfg.HTTP),
		seq:          sequencer.New(cfg.Sequencer),
		filter:       pidfilter.New(cfg.PIDFilter),
		buf:          tsbuffer.New(cfg.Buffer),
		streamSt:     tspacket.NewStreamState(logger),
		adTracker:    sequencer.NewAdBreakTracker(logger),
		firstSegment: true,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Run starts the ingester, writer and player-health goroutines and blocks
// until the stream completes, fails, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) Result {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	staggerDelay := time.Duration(0)
	if s.cfg.Resource != nil {
		staggerDelay, _ = s.cfg.Resource.Register(s.id)
		defer s.cfg.Resource.Unregister(s.id)
	}
	select {
	case <-time.After(staggerDelay):
	case <-runCtx.Done():
		return Result{Completed: CompletedCancelled, Reason: "cancelled during startup stagger"}
	}

	pipeBuffer := 256 * 1024
	if s.cfg.Resource != nil {
		pipeBuffer = s.cfg.Resource.PipeBufferSize()
	}
	playerCfg := s.cfg.Player
	playerCfg.PipeBufferBytes = pipeBuffer
	proc, err := player.Launch(runCtx, playerCfg)
	if err != nil {
		return Result{Completed: CompletedFailed, Reason: fmt.Sprintf("launching player: %v", err)}
	}
	defer proc.Stop()
	s.cfg.Logger.Info("session started",
		slog.String("session_id", s.id),
		slog.String("playlist_url", s.cfg.PlaylistURL),
		slog.Int("pipe_buffer_bytes", pipeBuffer))

	// failure carries the first fatal error from either pipeline goroutine
	// or the player-health monitor. It is buffered so a goroutine never
	// blocks reporting a failure nobody is listening for anymore.
	failure := make(chan string, 3)

	var pipelineWG sync.WaitGroup
	pipelineWG.Add(2)
	go func() {
		defer pipelineWG.Done()
		s.runIngester(runCtx, failure)
	}()
	go func() {
		defer pipelineWG.Done()
		s.runWriter(runCtx, proc, failure)
	}()
	pipelineDone := make(chan struct{})
	go func() {
		pipelineWG.Wait()
		close(pipelineDone)
	}()

	healthDone := make(chan struct{})
	go func() {
		defer close(healthDone)
		proc.MonitorHealth(runCtx, 200*time.Millisecond, func() {
			s.playerDead.Store(true)
			reason := "player process died"
			if err := proc.ExitErr(); err != nil {
				reason = fmt.Sprintf("player process died: %v", err)
			}
			select {
			case failure <- reason:
			default:
			}
		})
	}()

	var reason string
	select {
	case reason = <-failure:
		s.cancelToken.Store(true)
	case <-pipelineDone:
		// Ingester and writer both stopped on their own, either because
		// the upstream playlist ended or because runCtx was cancelled.
	case <-runCtx.Done():
		reason = "cancelled"
	}

	// Cancel unconditionally: this stops the health monitor once the
	// pipeline has finished, and is a no-op if a failure already
	// triggered shutdown.
	cancel()
	<-pipelineDone
	<-healthDone

	if ctx.Err() != nil {
		return Result{Completed: CompletedCancelled, Reason: reason}
	}
	if s.endOfStream.Load() && !s.playerDead.Load() {
		return Result{Completed: CompletedNormal, Reason: reason}
	}
	return Result{Completed: CompletedFailed, Reason: reason}
}

// runIngester refreshes the playlist on a ticker, feeds new segments
// through the sequencer, downloads released segments, and pushes their
// processed, filtered packets into the buffer. It is the only goroutine
// that mutates s.streamSt and s.filter's statistics, per spec.md §5's
// single-writer lock discipline.
func (s *Session) runIngester(ctx context.Context, failure chan<- string) {
	limiter := rate.NewLimiter(rate.Every(s.cfg.RefreshInterval), 1)
	consecutiveFailures := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if s.cancelToken.Load() {
			return
		}

		body, err := s.fetcher.FetchText(ctx, s.cfg.PlaylistURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			consecutiveFailures++
			s.cfg.Logger.Warn("playlist refresh failed",
				slog.String("error", err.Error()), slog.Int("consecutive_failures", consecutiveFailures))
			if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
				failure <- fmt.Sprintf("playlist refresh failed %d times consecutively: %v", consecutiveFailures, err)
				return
			}
			continue
		}
		consecutiveFailures = 0

		pl, err := hlsplaylist.Parse(bytes.NewReader(body), s.cfg.PlaylistURL, s.cfg.MediaSequenceBase)
		if err != nil {
			s.cfg.Logger.Warn("playlist parse failed", slog.String("error", err.Error()))
			continue
		}

		result := s.seq.Ingest(pl.Segments)
		s.recordSequencerStats()
		if result.Reanchored {
			s.buf.Clear()
			s.buf.SignalDiscontinuity()
			s.streamSt.Reset()
			s.firstSegment = true
		}

		for _, seg := range result.Released {
			if s.buf.ShouldPause() {
				s.seq.Pause()
				s.recordWatermarkTrip("pause")
			}

			inAdBreak := s.adTracker.Observe(seg)
			if inAdBreak {
				s.cfg.Logger.Debug("segment inside ad break", slog.String("url", seg.URL))
			}

			segData, err := s.fetcher.FetchBinary(ctx, seg.URL)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.cfg.Logger.Warn("segment download failed",
					slog.String("url", seg.URL), slog.String("error", err.Error()))
				s.recordSegmentSkipped("download_failed")
				continue
			}

			packets := s.streamSt.ProcessSegment(segData, s.firstSegment)
			s.firstSegment = false
			s.recordPacketStats()
			s.recordSegmentDownloaded()

			for _, p := range packets {
				if !s.filter.Decide(p) {
					continue
				}
				s.buf.Push(p)
			}
			s.recordBufferOccupancy()

			if s.buf.ShouldResume() {
				s.seq.Resume()
				s.buf.ClearDiscontinuity()
				s.recordWatermarkTrip("resume")
			}
		}

		if !pl.Live {
			s.buf.SignalEnd()
			s.endOfStream.Store(true)
			return
		}
	}
}

// runWriter pops packets from the buffer and writes them to the player's
// stdin pipe, one 188-byte blocking write at a time per spec.md §4.7.
func (s *Session) runWriter(ctx context.Context, proc *player.Process, failure chan<- string) {
	for {
		p, ok := s.buf.Pop(ctx)
		if !ok {
			if s.endOfStream.Load() {
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := proc.Write(p.Raw); err != nil {
			failure <- fmt.Sprintf("writing to player: %v", err)
			return
		}
	}
}

// The record* helpers translate this session's component-local statistics
// into Prometheus observations. Each is a no-op when cfg.Metrics is nil,
// so metrics stay entirely optional per spec.md's ambient-but-not-required
// observability stance.

func (s *Session) recordBufferOccupancy() {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.BufferOccupancy.WithLabelValues(s.id).Set(float64(s.buf.Count()))
}

func (s *Session) recordWatermarkTrip(direction string) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.WatermarkTrips.WithLabelValues(s.id, direction).Inc()
}

func (s *Session) recordSegmentDownloaded() {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.SegmentsDownloaded.WithLabelValues(s.id).Inc()
}

func (s *Session) recordSegmentSkipped(reason string) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.SegmentsSkipped.WithLabelValues(s.id, reason).Inc()
}

// recordPacketStats diffs tspacket's cumulative Stats against the last
// observed snapshot, since Prometheus counters want deltas to Add, not
// totals to Set.
func (s *Session) recordPacketStats() {
	current := s.streamSt.Stats()
	if s.cfg.Metrics != nil {
		if d := current.ContinuityErrors - s.prevPacketStats.ContinuityErrors; d > 0 {
			s.cfg.Metrics.ContinuityErrors.WithLabelValues(s.id).Add(float64(d))
		}
		if d := current.ContinuityGaps - s.prevPacketStats.ContinuityGaps; d > 0 {
			s.cfg.Metrics.ContinuityGaps.WithLabelValues(s.id).Add(float64(d))
		}
		if d := current.FramesNumbered - s.prevPacketStats.FramesNumbered; d > 0 {
			s.cfg.Metrics.FramesProcessed.WithLabelValues(s.id).Add(float64(d))
		}
		if d := current.KeyFrames - s.prevPacketStats.KeyFrames; d > 0 {
			s.cfg.Metrics.KeyFramesProcessed.WithLabelValues(s.id).Add(float64(d))
		}
	}
	s.prevPacketStats = current
}

// recordSequencerStats mirrors recordPacketStats for the sequencer's
// reanchor counter.
func (s *Session) recordSequencerStats() {
	current := s.seq.Stats()
	if s.cfg.Metrics != nil {
		if d := current.Reanchors - s.prevSeqStats.Reanchors; d > 0 {
			s.cfg.Metrics.SequencerReanchors.WithLabelValues(s.id).Add(float64(d))
		}
	}
	s.prevSeqStats = current
}
