package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelstream/corerelay/internal/pidfilter"
	"github.com/kestrelstream/corerelay/internal/player"
	"github.com/kestrelstream/corerelay/internal/sequencer"
	"github.com/kestrelstream/corerelay/internal/tsbuffer"
	"github.com/kestrelstream/corerelay/pkg/httpfetch"
)

// tsPacket builds one syntactically valid 188-byte TS packet carrying pid.
func tsPacket(pid int) []byte {
	p := make([]byte, 188)
	p[0] = 0x47
	p[1] = byte((pid >> 8) & 0x1F)
	p[2] = byte(pid)
	p[3] = 0x10 // payload only, continuity counter 0
	return p
}

func newTestServer(t *testing.T, segmentPacketCount int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:0\n"+
			"#EXTINF:2.0,\nsegment0.ts\n#EXT-X-ENDLIST\n")
	})
	mux.HandleFunc("/segment0.ts", func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < segmentPacketCount; i++ {
			_, _ = w.Write(tsPacket(0x100))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSessionConfig(t *testing.T, playlistURL string) Config {
	t.Helper()
	return Config{
		PlaylistURL:            playlistURL,
		RefreshInterval:        10 * time.Millisecond,
		MaxConsecutiveFailures: 5,
		HTTP:                   httpfetch.DefaultConfig(),
		Sequencer:              sequencer.Config{SeenURLCapacity: 64, GCLag: 10},
		PIDFilter:              pidfilter.Config{},
		Buffer:                 tsbuffer.Config{CapacityPackets: 1000, HighWatermarkPct: 0.8, LowWatermarkPct: 0.2, DiscontinuityHighWatermarkPct: 0.0625, DiscontinuityLowWatermarkPct: 0.125},
		Player:                 player.Config{Path: "cat", Args: nil, ExitGracePeriod: 200 * time.Millisecond, HealthTolerance: 3},
	}
}

func TestRun_CompletesNormallyOnEndList(t *testing.T) {
	srv := newTestServer(t, 5)
	cfg := testSessionConfig(t, srv.URL+"/playlist.m3u8")
	s := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := s.Run(ctx)
	assert.Equal(t, CompletedNormal, result.Completed)
}

func TestRun_FailsWhenPlaylistUnreachable(t *testing.T) {
	cfg := testSessionConfig(t, "http://127.0.0.1:1/playlist.m3u8")
	cfg.MaxConsecutiveFailures = 2
	cfg.RefreshInterval = 5 * time.Millisecond
	// Short retry delays so both failing refreshes finish well inside the
	// timeout (the default 600ms doubling ladder takes 4.2s per fetch).
	cfg.HTTP.RetryDelay = time.Millisecond
	cfg.HTTP.RetryMaxDelay = 5 * time.Millisecond
	s := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := s.Run(ctx)
	assert.Equal(t, CompletedFailed, result.Completed)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:0\n")
	})
	liveSrv := httptest.NewServer(mux)
	defer liveSrv.Close()
	_ = srv

	cfg := testSessionConfig(t, liveSrv.URL+"/live.m3u8")
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		assert.Equal(t, CompletedCancelled, result.Completed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestSession_ID_IsUnique(t *testing.T) {
	a := New(testSessionConfig(t, "http://example.invalid/a.m3u8"))
	b := New(testSessionConfig(t, "http://example.invalid/b.m3u8"))
	require.NotEqual(t, a.ID(), b.ID())
}
