// Package config provides configuration management for corerelay using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultHTTPTimeout          = 15 * time.Second
	defaultHTTPRetryAttempts    = 3
	defaultHTTPRetryDelay       = 600 * time.Millisecond
	defaultHTTPRetryMaxDelay    = 5 * time.Second
	defaultHTTPCircuitThreshold = 5
	defaultHTTPCircuitTimeout   = 30 * time.Second

	defaultPlaylistRefreshInterval   = 1200 * time.Millisecond
	defaultPlaylistMaxFailures       = 5
	defaultSequencerMaxSegmentBuffer = 3
	defaultSequencerSeenURLCapacity  = 256
	defaultSequencerGCLag            = 10
	defaultDiscontinuityCycleIn      = 3
	defaultDiscontinuityCycleOut     = 5

	defaultPIDFilterAutoDetectThreshold = 0.08

	defaultBufferCapacityPackets      = 20000
	defaultBufferHighWatermarkPct     = 0.80
	defaultBufferLowWatermarkPct      = 0.20
	defaultBufferDiscHighWatermarkPct = 0.0625
	defaultBufferDiscLowWatermarkPct  = 0.125

	defaultPlayerExitGracePeriod = 2 * time.Second
	defaultPlayerHealthTolerance = 3

	defaultResourceBasePipeBuffer   = 256 * 1024
	defaultResourceStaggerBaseDelay = 50 * time.Millisecond
	defaultResourceStaggerMaxDelay  = 1 * time.Second
)

// Config holds all configuration for corerelay.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Playlist  PlaylistConfig  `mapstructure:"playlist"`
	Sequencer SequencerConfig `mapstructure:"sequencer"`
	PIDFilter PIDFilterConfig `mapstructure:"pid_filter"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Player    PlayerConfig    `mapstructure:"player"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// HTTPConfig controls the HTTP fetcher's retry, timeout and TLS behavior.
type HTTPConfig struct {
	Timeout             Duration `mapstructure:"timeout"`
	RetryAttempts       int      `mapstructure:"retry_attempts"`
	RetryDelay          Duration `mapstructure:"retry_delay"`
	RetryMaxDelay       Duration `mapstructure:"retry_max_delay"`
	CircuitThreshold    int      `mapstructure:"circuit_threshold"`
	CircuitTimeout      Duration `mapstructure:"circuit_timeout"`
	UserAgent           string   `mapstructure:"user_agent"`
	InsecureSkipVerify  bool     `mapstructure:"insecure_skip_verify"`
}

// PlaylistConfig controls playlist refresh cadence and failure tolerance.
type PlaylistConfig struct {
	RefreshInterval        Duration `mapstructure:"refresh_interval"`
	MaxConsecutiveFailures int      `mapstructure:"max_consecutive_failures"`
}

// SequencerConfig controls segment sequencing behavior.
type SequencerConfig struct {
	MaxSegmentsToBuffer       int  `mapstructure:"max_segments_to_buffer"`
	SeenURLCapacity           int  `mapstructure:"seen_url_capacity"`
	GCLag                     int  `mapstructure:"gc_lag"`
	LowLatencyMode            bool `mapstructure:"low_latency_mode"`
	AdBreakHeuristics         bool `mapstructure:"ad_break_heuristics"`
	DiscontinuityCycleThreshold int `mapstructure:"discontinuity_cycle_threshold"`
	CleanCycleThreshold         int `mapstructure:"clean_cycle_threshold"`
}

// PIDFilterConfig controls PID filter mode and thresholds.
type PIDFilterConfig struct {
	Mode                 string  `mapstructure:"mode"`                   // allow-list, block-list, auto-detect
	DiscontinuityMode    string  `mapstructure:"discontinuity_mode"`     // pass-through, filter-out, log-only, smart
	Allow                []int   `mapstructure:"allow"`
	Block                []int   `mapstructure:"block"`
	AutoDetectThreshold  float64 `mapstructure:"auto_detect_threshold"`
}

// BufferConfig controls the TS buffer's capacity and watermarks.
type BufferConfig struct {
	CapacityPackets                 int      `mapstructure:"capacity_packets"`
	LowLatencyMode                  bool     `mapstructure:"low_latency_mode"`
	HighWatermarkPct                float64  `mapstructure:"high_watermark_pct"`
	LowWatermarkPct                  float64  `mapstructure:"low_watermark_pct"`
	DiscontinuityHighWatermarkPct    float64  `mapstructure:"discontinuity_high_watermark_pct"`
	DiscontinuityLowWatermarkPct     float64  `mapstructure:"discontinuity_low_watermark_pct"`
}

// PlayerConfig controls the downstream player child process.
type PlayerConfig struct {
	Path             string   `mapstructure:"path"`
	Args             []string `mapstructure:"args"`
	StdoutMode       string   `mapstructure:"stdout_mode"` // inherit, null
	StderrMode       string   `mapstructure:"stderr_mode"` // inherit, null
	ExitGracePeriod  Duration `mapstructure:"exit_grace_period"`
	HealthTolerance  int      `mapstructure:"health_tolerance"`
}

// ResourceConfig controls the process-wide resource coordinator.
type ResourceConfig struct {
	BasePipeBuffer   ByteSize `mapstructure:"base_pipe_buffer"`
	StaggerBaseDelay Duration `mapstructure:"stagger_base_delay"`
	StaggerMaxDelay  Duration `mapstructure:"stagger_max_delay"`
}

// MetricsConfig controls the optional Prometheus metrics endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CORERELAY_ and use underscores
// for nesting. Example: CORERELAY_HTTP_TIMEOUT=10s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("corerelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/corerelay")
		v.AddConfigPath("$HOME/.corerelay")
	}

	v.SetEnvPrefix("CORERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// Must be called before reading the config file so file/env values override
// these, not the other way around.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("http.retry_attempts", defaultHTTPRetryAttempts)
	v.SetDefault("http.retry_delay", defaultHTTPRetryDelay)
	v.SetDefault("http.retry_max_delay", defaultHTTPRetryMaxDelay)
	v.SetDefault("http.circuit_threshold", defaultHTTPCircuitThreshold)
	v.SetDefault("http.circuit_timeout", defaultHTTPCircuitTimeout)
	v.SetDefault("http.user_agent", "corerelay/1.0")
	v.SetDefault("http.insecure_skip_verify", false)

	v.SetDefault("playlist.refresh_interval", defaultPlaylistRefreshInterval)
	v.SetDefault("playlist.max_consecutive_failures", defaultPlaylistMaxFailures)

	v.SetDefault("sequencer.max_segments_to_buffer", defaultSequencerMaxSegmentBuffer)
	v.SetDefault("sequencer.seen_url_capacity", defaultSequencerSeenURLCapacity)
	v.SetDefault("sequencer.gc_lag", defaultSequencerGCLag)
	v.SetDefault("sequencer.low_latency_mode", true)
	v.SetDefault("sequencer.ad_break_heuristics", false)
	v.SetDefault("sequencer.discontinuity_cycle_threshold", defaultDiscontinuityCycleIn)
	v.SetDefault("sequencer.clean_cycle_threshold", defaultDiscontinuityCycleOut)

	v.SetDefault("pid_filter.mode", "auto-detect")
	v.SetDefault("pid_filter.discontinuity_mode", "smart")
	v.SetDefault("pid_filter.auto_detect_threshold", defaultPIDFilterAutoDetectThreshold)

	v.SetDefault("buffer.capacity_packets", defaultBufferCapacityPackets)
	v.SetDefault("buffer.low_latency_mode", true)
	v.SetDefault("buffer.high_watermark_pct", defaultBufferHighWatermarkPct)
	v.SetDefault("buffer.low_watermark_pct", defaultBufferLowWatermarkPct)
	v.SetDefault("buffer.discontinuity_high_watermark_pct", defaultBufferDiscHighWatermarkPct)
	v.SetDefault("buffer.discontinuity_low_watermark_pct", defaultBufferDiscLowWatermarkPct)

	v.SetDefault("player.path", "")
	v.SetDefault("player.args", []string{"-"})
	v.SetDefault("player.stdout_mode", "inherit")
	v.SetDefault("player.stderr_mode", "inherit")
	v.SetDefault("player.exit_grace_period", defaultPlayerExitGracePeriod)
	v.SetDefault("player.health_tolerance", defaultPlayerHealthTolerance)

	v.SetDefault("resource.base_pipe_buffer", defaultResourceBasePipeBuffer)
	v.SetDefault("resource.stagger_base_delay", defaultResourceStaggerBaseDelay)
	v.SetDefault("resource.stagger_max_delay", defaultResourceStaggerMaxDelay)

	v.SetDefault("metrics.addr", "")
}

// SetDefaultsOnConfig populates cfg with the same defaults SetDefaults
// applies to a viper instance, without requiring a file or env lookup.
// Useful for tests and for constructing a Config purely from flags.
func SetDefaultsOnConfig(cfg *Config) {
	v := viper.New()
	SetDefaults(v)
	_ = v.Unmarshal(cfg)
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Player.Path == "" {
		return errors.New("player.path is required")
	}
	if c.Buffer.CapacityPackets <= 0 {
		return errors.New("buffer.capacity_packets must be positive")
	}
	if c.Buffer.HighWatermarkPct <= c.Buffer.LowWatermarkPct {
		return errors.New("buffer.high_watermark_pct must exceed buffer.low_watermark_pct")
	}
	switch c.PIDFilter.Mode {
	case "allow-list", "block-list", "auto-detect":
	default:
		return fmt.Errorf("pid_filter.mode must be one of allow-list, block-list, auto-detect, got %q", c.PIDFilter.Mode)
	}
	switch c.PIDFilter.DiscontinuityMode {
	case "pass-through", "filter-out", "log-only", "smart":
	default:
		return fmt.Errorf("pid_filter.discontinuity_mode must be one of pass-through, filter-out, log-only, smart, got %q", c.PIDFilter.DiscontinuityMode)
	}
	if c.HTTP.RetryAttempts < 0 {
		return errors.New("http.retry_attempts must not be negative")
	}
	return nil
}
