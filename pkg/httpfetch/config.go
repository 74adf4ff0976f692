// Package httpfetch implements the HLS restreamer's HTTP Fetcher: a small
// resilient client exposing fetch-text/fetch-binary semantics with retry,
// backoff, circuit breaking and transparent decompression, fronting the
// playlist and segment downloads.
package httpfetch

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrelstream/corerelay/internal/config"
)

// Default configuration values, tuned to this spec's smaller retry window
// (spec.md: "Retries transient failures up to three times with a ~600 ms
// delay") rather than the wider backoff ladder a general-purpose proxy
// client would use.
const (
	DefaultTimeout           = 15 * time.Second
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 600 * time.Millisecond
	DefaultRetryMaxDelay     = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultCircuitThreshold  = 5
	DefaultCircuitTimeout    = 30 * time.Second
	DefaultCircuitHalfOpenMax = 1
	DefaultUserAgent         = "corerelay/1.0"
)

// HTTP header constants.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"

	DefaultAcceptEncodingHeader = "gzip, deflate, br"
)

// Config holds the configuration for the fetcher's underlying client.
type Config struct {
	Timeout            time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	RetryMaxDelay      time.Duration
	BackoffMultiplier  float64
	CircuitThreshold   int
	CircuitTimeout     time.Duration
	CircuitHalfOpenMax int
	UserAgent          string

	// InsecureSkipVerify disables TLS certificate verification. Some HLS
	// origins serve self-signed or hostname-mismatched certificates;
	// spec.md notes the source relaxed verification unconditionally, but
	// this implementation defaults to the secure posture and requires an
	// explicit operator opt-in (see DESIGN.md open-question decisions).
	InsecureSkipVerify bool

	// EnableDecompression turns on transparent gzip/deflate/brotli decoding.
	EnableDecompression bool

	Logger *slog.Logger

	// BaseClient, if set, replaces the default *http.Client (tests inject
	// one pointed at an httptest.Server transport).
	BaseClient *http.Client
}

// DefaultConfig returns a Config with this spec's defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		RetryAttempts:       DefaultRetryAttempts,
		RetryDelay:          DefaultRetryDelay,
		RetryMaxDelay:       DefaultRetryMaxDelay,
		BackoffMultiplier:   DefaultBackoffMultiplier,
		CircuitThreshold:    DefaultCircuitThreshold,
		CircuitTimeout:      DefaultCircuitTimeout,
		CircuitHalfOpenMax:  DefaultCircuitHalfOpenMax,
		UserAgent:           DefaultUserAgent,
		EnableDecompression: true,
		Logger:              slog.Default(),
	}
}

// FromConfig builds a Config from the operator-facing HTTPConfig, falling
// back to DefaultConfig's values for anything left unset.
func FromConfig(c config.HTTPConfig, logger *slog.Logger) Config {
	cfg := DefaultConfig()
	if logger != nil {
		cfg.Logger = logger
	}
	if timeout := c.Timeout.Duration(); timeout > 0 {
		cfg.Timeout = timeout
	}
	if c.RetryAttempts > 0 {
		cfg.RetryAttempts = c.RetryAttempts
	}
	if retryDelay := c.RetryDelay.Duration(); retryDelay > 0 {
		cfg.RetryDelay = retryDelay
	}
	if retryMaxDelay := c.RetryMaxDelay.Duration(); retryMaxDelay > 0 {
		cfg.RetryMaxDelay = retryMaxDelay
	}
	if c.CircuitThreshold > 0 {
		cfg.CircuitThreshold = c.CircuitThreshold
	}
	if circuitTimeout := c.CircuitTimeout.Duration(); circuitTimeout > 0 {
		cfg.CircuitTimeout = circuitTimeout
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	cfg.InsecureSkipVerify = c.InsecureSkipVerify
	return cfg
}

func (c Config) httpClient() *http.Client {
	if c.BaseClient != nil {
		return c.BaseClient
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // explicit operator opt-in, see Config.InsecureSkipVerify
	}
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}
