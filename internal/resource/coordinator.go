// Package resource implements the process-wide resource coordinator:
// a single value, constructed once and passed explicitly to each stream,
// that recommends pipe buffer sizes and startup stagger delays based on
// how many streams are currently active, per spec.md §4.7/§5.
package resource

import (
	"sync"
	"time"

	"github.com/kestrelstream/corerelay/internal/config"
)

// Config controls the coordinator's sizing ladder and stagger schedule.
type Config struct {
	BasePipeBuffer   int
	StaggerBaseDelay time.Duration
	StaggerMaxDelay  time.Duration
}

// FromConfig adapts a loaded config.ResourceConfig into a Config.
func FromConfig(c config.ResourceConfig) Config {
	base := int(c.BasePipeBuffer)
	if base <= 0 {
		base = 256 * 1024
	}
	staggerBase := c.StaggerBaseDelay.Duration()
	if staggerBase <= 0 {
		staggerBase = 50 * time.Millisecond
	}
	staggerMax := c.StaggerMaxDelay.Duration()
	if staggerMax <= 0 {
		staggerMax = time.Second
	}
	return Config{
		BasePipeBuffer:   base,
		StaggerBaseDelay: staggerBase,
		StaggerMaxDelay:  staggerMax,
	}
}

// Coordinator tracks how many streams are currently active and hands out
// sizing recommendations derived from that count. It holds the only
// cross-stream lock outside the hot path, per spec.md §5's "single mutex
// for its registry" guidance.
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	registry map[string]struct{}
}

// New constructs a Coordinator. It should be built once per process and
// passed explicitly to each stream session; it carries no global state.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		registry: make(map[string]struct{}),
	}
}

// Register admits a new stream into the registry and returns the stagger
// delay it should wait before starting its first playlist fetch, along
// with the active-stream count observed at registration (including the
// newly registered stream itself). Callers must call Unregister(id) when
// the stream stops.
func (c *Coordinator) Register(id string) (staggerDelay time.Duration, activeCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry[id] = struct{}{}
	activeCount = len(c.registry)
	staggerDelay = c.staggerDelayLocked(activeCount)
	return staggerDelay, activeCount
}

// Unregister removes a stream from the registry.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.registry, id)
}

// ActiveCount returns the number of currently registered streams.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registry)
}

// PipeBufferSize returns the recommended player stdin pipe buffer size for
// the current active-stream count, per spec.md §4.7's ladder: the base
// size for a single stream, 2x with 2-3 concurrent streams, 4x beyond that.
func (c *Coordinator) PipeBufferSize() int {
	c.mu.Lock()
	count := len(c.registry)
	c.mu.Unlock()
	return c.pipeBufferSizeFor(count)
}

func (c *Coordinator) pipeBufferSizeFor(activeCount int) int {
	switch {
	case activeCount <= 1:
		return c.cfg.BasePipeBuffer
	case activeCount <= 3:
		return c.cfg.BasePipeBuffer * 2
	default:
		return c.cfg.BasePipeBuffer * 4
	}
}

// staggerDelayLocked computes the producer-side startup stagger delay for
// a stream joining when activeCount streams are registered (including
// itself): the base delay for the first stream, scaling linearly up to
// the configured maximum to avoid a thundering herd of simultaneous
// playlist requests when many streams start together.
func (c *Coordinator) staggerDelayLocked(activeCount int) time.Duration {
	if activeCount <= 1 {
		return c.cfg.StaggerBaseDelay
	}
	delay := c.cfg.StaggerBaseDelay * time.Duration(activeCount)
	if delay > c.cfg.StaggerMaxDelay {
		delay = c.cfg.StaggerMaxDelay
	}
	return delay
}
