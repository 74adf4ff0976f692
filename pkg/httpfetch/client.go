package httpfetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Error taxonomy per spec.md §4.1/§7: Timeout, TransportError,
// HttpStatus(code), Cancelled. Cancellation is represented by Go's own
// context.Canceled/context.DeadlineExceeded rather than a bespoke type,
// since callers already check those with errors.Is.
var (
	// ErrTimeout is returned when all retry attempts are exhausted due to
	// timeouts, never reaching a response.
	ErrTimeout = errors.New("httpfetch: timeout")
	// ErrTransport is returned for non-timeout network failures (DNS,
	// connection reset, etc.) after retries are exhausted.
	ErrTransport = errors.New("httpfetch: transport error")
	// ErrCircuitOpen is returned when the circuit breaker is refusing
	// requests to this origin.
	ErrCircuitOpen = errors.New("httpfetch: circuit breaker open")
)

// HTTPStatusError reports a non-retryable or retry-exhausted HTTP status.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("httpfetch: http status %d for %s", e.Code, e.URL)
}

// Client is a resilient HTTP client implementing the HTTP Fetcher
// component: fetch-text / fetch-binary with retry, backoff, circuit
// breaking and transparent decompression.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    cfg.httpClient(),
		breaker: NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout, cfg.CircuitHalfOpenMax),
		logger:  cfg.Logger,
	}
}

// FetchText fetches url and returns its body, treated as text (an M3U8
// playlist). Retries transient failures up to cfg.RetryAttempts times with
// exponential backoff starting at cfg.RetryDelay, polling ctx between
// attempts and between decompressed-body reads.
func (c *Client) FetchText(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url)
}

// FetchBinary fetches url and returns its raw body (a media segment).
// Identical retry/cancellation semantics to FetchText; kept as a distinct
// operation per spec.md §4.1 even though the implementation is shared,
// since callers reason about the two independently (playlists are small
// and parsed, segments are large and streamed byte-for-byte downstream).
func (c *Client) FetchBinary(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url)
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: building request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.cfg.UserAgent)
	}
	if c.cfg.EnableDecompression {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	var lastErr error
	delay := c.cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	attempts := c.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}

	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * DefaultBackoffMultiplier)
			if max := c.cfg.RetryMaxDelay; max > 0 && delay > max {
				delay = max
			}
		}

		if !c.breaker.Allow() {
			lastErr = ErrCircuitOpen
			continue
		}

		body, statusCode, err := c.attempt(ctx, req)
		if err != nil {
			c.breaker.RecordFailure()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = classifyTransportError(err)
			c.logger.Warn("fetch attempt failed",
				slog.String("url", url), slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		if isRetryableStatus(statusCode) {
			c.breaker.RecordFailure()
			lastErr = &HTTPStatusError{Code: statusCode, URL: url}
			c.logger.Warn("retryable status", slog.String("url", url), slog.Int("status", statusCode))
			continue
		}

		if statusCode >= 200 && statusCode < 300 {
			c.breaker.RecordSuccess()
			return body, nil
		}

		c.breaker.RecordFailure()
		return nil, &HTTPStatusError{Code: statusCode, URL: url}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTransport
}

func (c *Client) attempt(ctx context.Context, req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if c.cfg.EnableDecompression {
		decompressed, cerr := decompress(resp)
		if cerr != nil {
			return nil, 0, cerr
		}
		body = decompressed
	}

	data, err := readAllWithContext(ctx, body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func readAllWithContext(ctx context.Context, r io.Reader) ([]byte, error) {
	const chunkSize = 64 * 1024
	var buf []byte
	chunk := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func decompress(resp *http.Response) (io.Reader, error) {
	encoding := strings.ToLower(resp.Header.Get(HeaderContentEncoding))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case EncodingGzip:
		return gzip.NewReader(resp.Body)
	case EncodingDeflate:
		return flate.NewReader(resp.Body), nil
	case EncodingBrotli:
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func classifyTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// CircuitState returns the current circuit breaker state, for diagnostics.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// Stats returns the underlying circuit breaker's counters.
func (c *Client) Stats() Stats {
	return c.breaker.Stats()
}
