package hlsplaylist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_RoundTrip(t *testing.T) {
	original, err := Parse(strings.NewReader(samplePlaylist), "https://example.com/live/stream.m3u8", 0)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Write(&buf, original))

	reparsed, err := Parse(strings.NewReader(buf.String()), "https://example.com/live/stream.m3u8", 0)
	require.NoError(t, err)

	require.Len(t, reparsed.Segments, len(original.Segments))
	for i := range original.Segments {
		assert.Equal(t, original.Segments[i].MediaSequence, reparsed.Segments[i].MediaSequence)
		assert.Equal(t, original.Segments[i].Discontinuity, reparsed.Segments[i].Discontinuity)
		assert.Equal(t, original.Segments[i].Duration, reparsed.Segments[i].Duration)
	}
}

func TestWrite_EndListEmittedWhenNotLive(t *testing.T) {
	pl := &Playlist{Live: false}
	var buf strings.Builder
	require.NoError(t, Write(&buf, pl))
	assert.Contains(t, buf.String(), "#EXT-X-ENDLIST")
}

func TestWrite_NoEndListWhenLive(t *testing.T) {
	pl := &Playlist{Live: true}
	var buf strings.Builder
	require.NoError(t, Write(&buf, pl))
	assert.NotContains(t, buf.String(), "#EXT-X-ENDLIST")
}
