// Package pidfilter applies an allow-list/block-list/auto-detect PID policy
// and a discontinuity-handling policy to a stream of tagged TS packets.
// Stateful per stream; callers must serialize calls to Decide (the single
// writer/ingester goroutine owns one Filter instance for a stream's
// lifetime, matching the rest of the ingest pipeline's ownership model).
package pidfilter

import (
	"log/slog"
	"time"

	"github.com/kestrelstream/corerelay/internal/config"
	"github.com/kestrelstream/corerelay/internal/tspacket"
)

// Mode is the PID filter's primary policy.
type Mode string

const (
	ModeAllowList  Mode = "allow-list"
	ModeBlockList  Mode = "block-list"
	ModeAutoDetect Mode = "auto-detect"
)

// DiscontinuityMode governs how discontinuity-flagged packets are handled
// once the primary Mode policy has already decided to keep a packet.
type DiscontinuityMode string

const (
	DiscontinuityPassThrough DiscontinuityMode = "pass-through"
	DiscontinuityFilterOut   DiscontinuityMode = "filter-out"
	DiscontinuityLogOnly     DiscontinuityMode = "log-only"
	DiscontinuitySmart       DiscontinuityMode = "smart"
)

// minAutoDetectSamples is the packet count a PID must reach before its
// discontinuity rate is evaluated against the auto-detect threshold.
const minAutoDetectSamples = 100

// defaultAutoDetectThreshold matches spec.md §4.5's "typical 5-10%" middle.
const defaultAutoDetectThreshold = 0.08

// Config controls one Filter instance.
type Config struct {
	Mode                Mode
	DiscontinuityMode   DiscontinuityMode
	Allow               map[int]struct{}
	Block               map[int]struct{}
	AutoDetectThreshold float64
	Logger              *slog.Logger
}

// FromConfig adapts a loaded config.PIDFilterConfig into a Config.
func FromConfig(c config.PIDFilterConfig, logger *slog.Logger) Config {
	threshold := c.AutoDetectThreshold
	if threshold <= 0 {
		threshold = defaultAutoDetectThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Config{
		Mode:                Mode(c.Mode),
		DiscontinuityMode:   DiscontinuityMode(c.DiscontinuityMode),
		Allow:               toSet(c.Allow),
		Block:               toSet(c.Block),
		AutoDetectThreshold: threshold,
		Logger:              logger,
	}
}

func toSet(pids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		set[pid] = struct{}{}
	}
	return set
}

// pidStats holds per-PID diagnostics, per spec.md §4.5.
type pidStats struct {
	packets         uint64
	discontinuities uint64
	errors          uint64
	continuityError bool
	firstSeen       time.Time
}

// Filter is a stateful, per-stream PID decision engine.
type Filter struct {
	cfg Config

	stats       map[int]*pidStats
	autoBlocked map[int]struct{}
}

// New creates a Filter from cfg.
func New(cfg Config) *Filter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Filter{
		cfg:         cfg,
		stats:       make(map[int]*pidStats),
		autoBlocked: make(map[int]struct{}),
	}
}

func isEssential(pid int) bool {
	return pid == tspacket.PIDPAT
}

// Decide applies the filter/discontinuity policy to one packet and returns
// whether it should be kept. p.Kind carries the packet's video/audio
// classification (tspacket.KindVideo/KindAudio/KindUnknown); PMT PIDs
// aren't separately classified upstream, so "essential" in smart
// discontinuity mode covers PAT plus any classified video/audio PID.
func (f *Filter) Decide(p tspacket.Packet) bool {
	f.recordStats(p)

	keep := f.applyMode(p.PID)
	if !keep {
		return false
	}

	if p.DiscontinuityIndicator {
		return f.applyDiscontinuityMode(p)
	}
	return true
}

func (f *Filter) applyMode(pid int) bool {
	switch f.cfg.Mode {
	case ModeAllowList:
		_, ok := f.cfg.Allow[pid]
		return ok
	case ModeBlockList:
		if _, blocked := f.cfg.Block[pid]; blocked {
			return false
		}
		_, autoBlocked := f.autoBlocked[pid]
		return !autoBlocked
	case ModeAutoDetect:
		_, autoBlocked := f.autoBlocked[pid]
		return !autoBlocked
	default:
		return true
	}
}

func (f *Filter) applyDiscontinuityMode(p tspacket.Packet) bool {
	switch f.cfg.DiscontinuityMode {
	case DiscontinuityPassThrough:
		return true
	case DiscontinuityFilterOut:
		return false
	case DiscontinuityLogOnly:
		f.cfg.Logger.Info("discontinuity on kept packet", slog.Int("pid", p.PID))
		return true
	case DiscontinuitySmart:
		return isEssential(p.PID) || p.Kind == tspacket.KindVideo || p.Kind == tspacket.KindAudio
	default:
		return true
	}
}

func (f *Filter) recordStats(p tspacket.Packet) {
	st, ok := f.stats[p.PID]
	if !ok {
		st = &pidStats{firstSeen: time.Now()}
		f.stats[p.PID] = st
	}
	st.packets++
	if p.DiscontinuityIndicator {
		st.discontinuities++
	}
	if p.Continuity == tspacket.ContinuityError {
		st.errors++
		st.continuityError = true
	}

	if f.cfg.Mode == ModeAutoDetect && st.packets >= minAutoDetectSamples {
		rate := float64(st.discontinuities) / float64(st.packets)
		if rate > f.cfg.AutoDetectThreshold {
			if _, already := f.autoBlocked[p.PID]; !already {
				f.autoBlocked[p.PID] = struct{}{}
				f.cfg.Logger.Warn("pid auto-blocked",
					slog.Int("pid", p.PID), slog.Float64("discontinuity_rate", rate))
			}
		}
	}
}

// PIDStats is an exported snapshot of one PID's diagnostics.
type PIDStats struct {
	PID             int
	Packets         uint64
	Discontinuities uint64
	Errors          uint64
	ContinuityError bool
	RatePerSecond   float64
	AutoBlocked     bool
}

// Stats returns a snapshot of all observed PIDs' diagnostics.
func (f *Filter) Stats() []PIDStats {
	out := make([]PIDStats, 0, len(f.stats))
	now := time.Now()
	for pid, st := range f.stats {
		elapsed := now.Sub(st.firstSeen).Seconds()
		rate := 0.0
		if elapsed > 0 {
			rate = float64(st.packets) / elapsed
		}
		_, blocked := f.autoBlocked[pid]
		out = append(out, PIDStats{
			PID:             pid,
			Packets:         st.packets,
			Discontinuities: st.discontinuities,
			Errors:          st.errors,
			ContinuityError: st.continuityError,
			RatePerSecond:   rate,
			AutoBlocked:     blocked,
		})
	}
	return out
}
