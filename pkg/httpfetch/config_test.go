package httpfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelstream/corerelay/internal/config"
)

func TestFromConfig_AppliesOperatorOverrides(t *testing.T) {
	c := config.HTTPConfig{
		Timeout:            config.Duration(5_000_000_000), // 5s in nanoseconds
		RetryAttempts:      7,
		RetryDelay:         config.Duration(1_000_000_000),
		RetryMaxDelay:      config.Duration(10_000_000_000),
		CircuitThreshold:   9,
		CircuitTimeout:     config.Duration(60_000_000_000),
		UserAgent:          "my-agent/1.0",
		InsecureSkipVerify: true,
	}

	cfg := FromConfig(c, nil)

	assert.Equal(t, c.Timeout.Duration(), cfg.Timeout)
	assert.Equal(t, 7, cfg.RetryAttempts)
	assert.Equal(t, c.RetryDelay.Duration(), cfg.RetryDelay)
	assert.Equal(t, c.RetryMaxDelay.Duration(), cfg.RetryMaxDelay)
	assert.Equal(t, 9, cfg.CircuitThreshold)
	assert.Equal(t, c.CircuitTimeout.Duration(), cfg.CircuitTimeout)
	assert.Equal(t, "my-agent/1.0", cfg.UserAgent)
	assert.True(t, cfg.InsecureSkipVerify)
}

func TestFromConfig_FallsBackToDefaultsWhenUnset(t *testing.T) {
	cfg := FromConfig(config.HTTPConfig{}, nil)

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, DefaultRetryMaxDelay, cfg.RetryMaxDelay)
	assert.Equal(t, DefaultCircuitThreshold, cfg.CircuitThreshold)
	assert.Equal(t, DefaultCircuitTimeout, cfg.CircuitTimeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.False(t, cfg.InsecureSkipVerify)
}
