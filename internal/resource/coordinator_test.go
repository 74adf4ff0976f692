package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelstream/corerelay/internal/config"
)

func testCfg() Config {
	return Config{
		BasePipeBuffer:   256 * 1024,
		StaggerBaseDelay: 50 * time.Millisecond,
		StaggerMaxDelay:  time.Second,
	}
}

func TestRegister_FirstStreamGetsBaseStagger(t *testing.T) {
	c := New(testCfg())
	delay, count := c.Register("a")
	assert.Equal(t, 1, count)
	assert.Equal(t, 50*time.Millisecond, delay)
}

func TestRegister_StaggerScalesWithActiveCountUpToMax(t *testing.T) {
	c := New(testCfg())
	c.Register("a")
	c.Register("b")
	delay, count := c.Register("c")
	assert.Equal(t, 3, count)
	assert.Equal(t, 150*time.Millisecond, delay)

	for i := 0; i < 30; i++ {
		c.Register(string(rune('d' + i)))
	}
	delay, _ = c.Register("z")
	assert.Equal(t, time.Second, delay)
}

func TestUnregister_DecreasesActiveCount(t *testing.T) {
	c := New(testCfg())
	c.Register("a")
	c.Register("b")
	assert.Equal(t, 2, c.ActiveCount())

	c.Unregister("a")
	assert.Equal(t, 1, c.ActiveCount())
}

func TestPipeBufferSize_SingleStream(t *testing.T) {
	c := New(testCfg())
	c.Register("a")
	assert.Equal(t, 256*1024, c.PipeBufferSize())
}

func TestPipeBufferSize_TwoToThreeStreamsDoubles(t *testing.T) {
	c := New(testCfg())
	c.Register("a")
	c.Register("b")
	assert.Equal(t, 512*1024, c.PipeBufferSize())

	c.Register("c")
	assert.Equal(t, 512*1024, c.PipeBufferSize())
}

func TestPipeBufferSize_MoreThanThreeStreamsQuadruples(t *testing.T) {
	c := New(testCfg())
	c.Register("a")
	c.Register("b")
	c.Register("c")
	c.Register("d")
	assert.Equal(t, 1024*1024, c.PipeBufferSize())
}

func TestFromConfig_AppliesDefaults(t *testing.T) {
	cfg := FromConfig(config.ResourceConfig{})
	assert.Equal(t, 256*1024, cfg.BasePipeBuffer)
	assert.Equal(t, 50*time.Millisecond, cfg.StaggerBaseDelay)
	assert.Equal(t, time.Second, cfg.StaggerMaxDelay)
}

func TestFromConfig_HonorsExplicitValues(t *testing.T) {
	raw, err := config.ParseByteSize("512KB")
	if err != nil {
		t.Fatalf("parsing byte size: %v", err)
	}
	cfg := FromConfig(config.ResourceConfig{
		BasePipeBuffer:   raw,
		StaggerBaseDelay: config.Duration(100 * time.Millisecond),
		StaggerMaxDelay:  config.Duration(2 * time.Second),
	})
	assert.Equal(t, int(raw), cfg.BasePipeBuffer)
	assert.Equal(t, 100*time.Millisecond, cfg.StaggerBaseDelay)
	assert.Equal(t, 2*time.Second, cfg.StaggerMaxDelay)
}
