// Package tsbuffer implements the bounded, back-pressured FIFO of TS
// packets sitting between the ingester and the player pipe writer.
package tsbuffer

import (
	"context"
	"sync"

	"github.com/kestrelstream/corerelay/internal/config"
	"github.com/kestrelstream/corerelay/internal/tspacket"
)

// Config controls one Buffer instance's capacity and watermarks, per
// spec.md §4.6.
type Config struct {
	CapacityPackets int
	LowLatencyMode  bool

	HighWatermarkPct float64
	LowWatermarkPct  float64

	// Tightened watermarks used immediately after a discontinuity, to
	// prioritize re-establishing playback over buffering.
	DiscontinuityHighWatermarkPct float64
	DiscontinuityLowWatermarkPct  float64
}

// FromConfig adapts a loaded config.BufferConfig into a Config.
func FromConfig(c config.BufferConfig) Config {
	cfg := Config{
		CapacityPackets:               c.CapacityPackets,
		LowLatencyMode:                c.LowLatencyMode,
		HighWatermarkPct:              c.HighWatermarkPct,
		LowWatermarkPct:               c.LowWatermarkPct,
		DiscontinuityHighWatermarkPct: c.DiscontinuityHighWatermarkPct,
		DiscontinuityLowWatermarkPct:  c.DiscontinuityLowWatermarkPct,
	}
	if cfg.CapacityPackets <= 0 {
		cfg.CapacityPackets = 20000
	}
	if cfg.HighWatermarkPct <= 0 {
		cfg.HighWatermarkPct = 0.80
	}
	if cfg.LowWatermarkPct <= 0 {
		cfg.LowWatermarkPct = 0.20
	}
	if cfg.DiscontinuityHighWatermarkPct <= 0 {
		cfg.DiscontinuityHighWatermarkPct = 0.0625
	}
	if cfg.DiscontinuityLowWatermarkPct <= 0 {
		cfg.DiscontinuityLowWatermarkPct = 0.125
	}
	return cfg
}

// burstDropLimit is the maximum number of oldest packets a single
// low-latency-mode overflow drops at once, per spec.md §4.6.
const burstDropLimit = 10

// Stats is a snapshot of buffer counters.
type Stats struct {
	Count          int
	Dropped        uint64
	Pushed         uint64
	Popped         uint64
	ProducerActive bool
}

// Buffer is a bounded FIFO of tspacket.Packet with mutex-protected access,
// watermark-based back-pressure signaling, and an overflow policy that
// differs between standard and low-latency modes.
type Buffer struct {
	cfg Config

	mu              sync.Mutex
	cond            *sync.Cond
	queue           []tspacket.Packet
	producerActive  bool
	closed          bool
	tightWatermarks bool

	dropped uint64
	pushed  uint64
	popped  uint64
}

// New creates a Buffer from cfg.
func New(cfg Config) *Buffer {
	b := &Buffer{cfg: cfg, producerActive: true}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a packet, applying the overflow policy if the buffer is at
// capacity.
func (b *Buffer) Push(p tspacket.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) >= b.cfg.CapacityPackets {
		if b.cfg.LowLatencyMode && len(b.queue) >= b.cfg.CapacityPackets/2 {
			drop := burstDropLimit
			if drop > len(b.queue) {
				drop = len(b.queue)
			}
			b.queue = b.queue[drop:]
			b.dropped += uint64(drop)
		} else {
			b.queue = b.queue[1:]
			b.dropped++
		}
	}

	b.queue = append(b.queue, p)
	b.pushed++
	b.cond.Signal()
}

// Pop blocks until a packet is available, ctx is cancelled, or the buffer
// is closed (producer signaled end and the queue has drained). Returns
// ok=false in the latter two cases.
func (b *Buffer) Pop(ctx context.Context) (tspacket.Packet, bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-stop:
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.queue) == 0 {
		if b.closed || !b.producerActive || ctx.Err() != nil {
			return tspacket.Packet{}, false
		}
		b.cond.Wait()
	}

	p := b.queue[0]
	b.queue = b.queue[1:]
	b.popped++
	return p, true
}

// Count returns the current queue length.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Clear empties the queue, used on sequencer re-anchor after a
// discontinuity.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
}

// SignalEnd marks the producer as finished; Pop drains remaining packets
// then reports closed.
func (b *Buffer) SignalEnd() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.producerActive = false
	b.closed = true
	b.cond.Broadcast()
}

// SignalDiscontinuity tightens the watermarks used by ShouldPause/
// ShouldResume, per spec.md §4.6. They stay tightened until
// ClearDiscontinuity is called once playback is re-established; Clear does
// not reset them.
func (b *Buffer) SignalDiscontinuity() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tightWatermarks = true
}

// ClearDiscontinuity reverts to standard watermarks.
func (b *Buffer) ClearDiscontinuity() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tightWatermarks = false
}

// ShouldPause reports whether the ingester should pause downloads because
// the buffer is above its high watermark.
func (b *Buffer) ShouldPause() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pct := b.cfg.HighWatermarkPct
	if b.tightWatermarks {
		pct = b.cfg.DiscontinuityHighWatermarkPct
	}
	return float64(len(b.queue)) >= pct*float64(b.cfg.CapacityPackets)
}

// ShouldResume reports whether a paused ingester should resume downloads
// because the buffer has drained below its low watermark.
func (b *Buffer) ShouldResume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pct := b.cfg.LowWatermarkPct
	if b.tightWatermarks {
		pct = b.cfg.DiscontinuityLowWatermarkPct
	}
	return float64(len(b.queue)) <= pct*float64(b.cfg.CapacityPackets)
}

// Stats returns a snapshot of buffer counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:          len(b.queue),
		Dropped:        b.dropped,
		Pushed:         b.pushed,
		Popped:         b.popped,
		ProducerActive: b.producerActive,
	}
}
