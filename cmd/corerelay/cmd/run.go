package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelstream/corerelay/internal/metrics"
	"github.com/kestrelstream/corerelay/internal/resource"
	"github.com/kestrelstream/corerelay/internal/stream"
	"github.com/kestrelstream/corerelay/internal/util"
)

const metricsShutdownGrace = 5 * time.Second

var (
	runPlaylistURL string
	runPlayerPath  string
	runPlayerArgs  []string
	runMaxRestarts int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single HLS restream to completion",
	Long: `Run ingests the HLS media playlist at --playlist, sequences and
demuxes its segments, and streams the filtered MPEG-TS packets to the
player process at --player over a pipe. It blocks until the stream ends,
fails, or is interrupted, then prints a one-line JSON completion summary.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPlaylistURL, "playlist", "", "HLS media playlist URL (required)")
	runCmd.Flags().StringVar(&runPlayerPath, "player", "", "path to the downstream player executable (required)")
	runCmd.Flags().StringSliceVar(&runPlayerArgs, "player-args", []string{"-"}, "arguments passed to the player (conventionally a single \"-\" for stdin)")
	runCmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	runCmd.Flags().IntVar(&runMaxRestarts, "max-player-restarts", 0, "restart the player and resume the stream this many times if the player process dies (0 disables restart)")

	mustBindPFlag("player.path", runCmd.Flags().Lookup("player"))
	mustBindPFlag("player.args", runCmd.Flags().Lookup("player-args"))
	mustBindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
}

// completionSummary is the JSON-line printed to stdout when a stream stops.
type completionSummary struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"` // normal_completion, failed_or_interrupted
	Reason    string `json:"reason,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
	if runPlaylistURL == "" {
		return fmt.Errorf("--playlist is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runPlayerPath != "" {
		cfg.Player.Path = runPlayerPath
	}
	if cfg.Player.Path == "" {
		return fmt.Errorf("--player is required")
	}
	if !strings.ContainsAny(cfg.Player.Path, `/\`) {
		if resolved, err := util.FindBinary(cfg.Player.Path, "CORERELAY_PLAYER_BINARY"); err == nil {
			cfg.Player.Path = resolved
		}
	}

	logger := slog.Default()

	coordinator := resource.New(resource.FromConfig(cfg.Resource))

	var reg *metrics.Registry
	var metricsServer *metrics.Server
	if addr := viper.GetString("metrics.addr"); addr != "" {
		reg = metrics.New()
		metricsServer = metrics.NewServer(addr, reg, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var session *stream.Session
	var result stream.Result
	for attempt := 0; ; attempt++ {
		session = stream.New(stream.FromConfig(cfg, runPlaylistURL, coordinator, reg, logger))
		result = session.Run(ctx)

		playerDied := result.Completed == stream.CompletedFailed && strings.Contains(result.Reason, "player")
		if !playerDied || attempt >= runMaxRestarts || ctx.Err() != nil {
			break
		}
		if reg != nil {
			reg.PlayerRestarts.WithLabelValues(session.ID()).Inc()
		}
		logger.Warn("player died, restarting stream",
			slog.String("session_id", session.ID()), slog.String("reason", result.Reason),
			slog.Int("attempt", attempt+1))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	summary := completionSummary{SessionID: session.ID(), Reason: result.Reason}
	switch result.Completed {
	case stream.CompletedNormal:
		summary.Status = "normal_completion"
	default:
		summary.Status = "failed_or_interrupted"
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling completion summary: %w", err)
	}
	fmt.Println(string(encoded))

	if result.Completed != stream.CompletedNormal {
		return fmt.Errorf("stream did not complete normally: %s", result.Reason)
	}
	return nil
}
