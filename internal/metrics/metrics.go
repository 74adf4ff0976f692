// Package metrics exposes corerelay's Prometheus counters and gauges: an
// ambient observability concern carried per spec.md's non-goals excluding
// metrics as a functional requirement, not as a reason to drop the domain
// dependency entirely. Registered on an HTTP server only when an address is
// configured; otherwise the Registry is still usable for in-process
// inspection but nothing listens.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric corerelay's pipeline reports, one set of
// vectors shared across all active stream sessions and labeled by
// session_id so a single process serving multiple streams stays
// distinguishable.
type Registry struct {
	reg *prometheus.Registry

	BufferOccupancy    *prometheus.GaugeVec
	WatermarkTrips     *prometheus.CounterVec
	ContinuityErrors   *prometheus.CounterVec
	ContinuityGaps     *prometheus.CounterVec
	FramesProcessed    *prometheus.CounterVec
	KeyFramesProcessed *prometheus.CounterVec
	SegmentsDownloaded *prometheus.CounterVec
	SegmentsSkipped    *prometheus.CounterVec
	PlayerRestarts     *prometheus.CounterVec
	SequencerReanchors *prometheus.CounterVec
}

// New creates a Registry with every metric registered under the
// "corerelay" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		reg: reg,
		BufferOccupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "corerelay",
			Subsystem: "buffer",
			Name:      "occupancy_packets",
			Help:      "Current number of TS packets held in the session's buffer.",
		}, []string{"session_id"}),
		WatermarkTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "buffer",
			Name:      "watermark_trips_total",
			Help:      "Number of times the buffer crossed a pause/resume watermark.",
		}, []string{"session_id", "direction"}),
		ContinuityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "tspacket",
			Name:      "continuity_errors_total",
			Help:      "MPEG-TS continuity counter errors observed (duplicate counter with payload).",
		}, []string{"session_id"}),
		ContinuityGaps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "tspacket",
			Name:      "continuity_gaps_total",
			Help:      "MPEG-TS continuity counter gaps observed.",
		}, []string{"session_id"}),
		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "tspacket",
			Name:      "frames_processed_total",
			Help:      "Video frame boundaries observed and numbered.",
		}, []string{"session_id"}),
		KeyFramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "tspacket",
			Name:      "key_frames_total",
			Help:      "Key frames detected among processed frames.",
		}, []string{"session_id"}),
		SegmentsDownloaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "ingest",
			Name:      "segments_downloaded_total",
			Help:      "HLS media segments successfully downloaded.",
		}, []string{"session_id"}),
		SegmentsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "ingest",
			Name:      "segments_skipped_total",
			Help:      "HLS media segments skipped: duplicate, stale, or download failure.",
		}, []string{"session_id", "reason"}),
		PlayerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "player",
			Name:      "restarts_total",
			Help:      "Player process restarts after an unexpected exit.",
		}, []string{"session_id"}),
		SequencerReanchors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corerelay",
			Subsystem: "sequencer",
			Name:      "reanchors_total",
			Help:      "Sequencer re-anchors triggered by an upstream discontinuity.",
		}, []string{"session_id"}),
	}
	return r
}

// Server optionally exposes a Registry's metrics over HTTP at /metrics.
// Kept on plain net/http rather than the teacher's chi/huma stack: a
// single-endpoint metrics server doesn't warrant a routing/OpenAPI
// framework built for a multi-handler REST API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a metrics Server bound to addr. Call Start to begin
// serving and Shutdown to stop gracefully.
func NewServer(addr string, reg *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{}))
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving metrics until Shutdown is called or the listener
// fails. Returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting metrics server", slog.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the metrics server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutting down server: %w", err)
	}
	return nil
}
