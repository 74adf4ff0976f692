package hlsplaylist

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:100
#EXTINF:6.006,
seg100.ts
#EXTINF:6.006,
seg101.ts
#EXT-X-DISCONTINUITY
#EXTINF:6.006,
seg102.ts
`

func TestParse_BasicSegments(t *testing.T) {
	pl, err := Parse(strings.NewReader(samplePlaylist), "https://example.com/live/stream.m3u8", 0)
	require.NoError(t, err)

	require.Len(t, pl.Segments, 3)
	assert.Equal(t, int64(100), pl.MediaSequence)
	assert.Equal(t, 6*time.Second, pl.TargetDuration)
	assert.True(t, pl.Live)

	assert.Equal(t, "https://example.com/live/seg100.ts", pl.Segments[0].URL)
	assert.Equal(t, int64(100), pl.Segments[0].MediaSequence)
	assert.False(t, pl.Segments[0].Discontinuity)

	assert.Equal(t, int64(101), pl.Segments[1].MediaSequence)

	assert.True(t, pl.Segments[2].Discontinuity)
	assert.Equal(t, int64(102), pl.Segments[2].MediaSequence)
	assert.True(t, pl.HasDiscontinuity)
}

func TestParse_EndList(t *testing.T) {
	input := samplePlaylist + "#EXT-X-ENDLIST\n"
	pl, err := Parse(strings.NewReader(input), "", 0)
	require.NoError(t, err)
	assert.False(t, pl.Live)
}

func TestParse_UnknownTagsIgnored(t *testing.T) {
	input := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-SOME-FUTURE-TAG:foo\n#EXTINF:2.0,\nseg0.ts\n"
	pl, err := Parse(strings.NewReader(input), "", 5)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	assert.Equal(t, int64(5), pl.Segments[0].MediaSequence)
}

func TestParse_EmptyInput(t *testing.T) {
	pl, err := Parse(strings.NewReader(""), "", 0)
	require.NoError(t, err)
	assert.Empty(t, pl.Segments)
}

func TestParse_SCTE35AdBoundaries(t *testing.T) {
	input := "#EXTM3U\n#EXTINF:6.0,\nseg0.ts\n#EXT-X-SCTE35-OUT\n#EXTINF:6.0,\nad0.ts\n#EXT-X-SCTE35-IN\n#EXTINF:6.0,\nseg1.ts\n"
	pl, err := Parse(strings.NewReader(input), "", 0)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 3)
	assert.False(t, pl.Segments[0].SCTE35AdStart)
	assert.True(t, pl.Segments[1].SCTE35AdStart)
	assert.True(t, pl.Segments[2].SCTE35AdEnd)
}

func TestParse_RelativeURLReplacesLastSegment(t *testing.T) {
	pl, err := Parse(strings.NewReader("#EXTM3U\n#EXTINF:2,\nchunk.ts\n"), "https://cdn.example.com/a/b/playlist.m3u8?token=xyz", 0)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	assert.Equal(t, "https://cdn.example.com/a/b/chunk.ts", pl.Segments[0].URL)
}

func TestParse_AbsoluteSegmentURLPassesThrough(t *testing.T) {
	pl, err := Parse(strings.NewReader("#EXTM3U\n#EXTINF:2,\nhttps://other.example.com/x.ts\n"), "https://cdn.example.com/a/playlist.m3u8", 0)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	assert.Equal(t, "https://other.example.com/x.ts", pl.Segments[0].URL)
}

func TestParse_MediaSequenceBaseAppliedWithoutTag(t *testing.T) {
	input := "#EXTM3U\n#EXTINF:2,\nseg0.ts\n#EXTINF:2,\nseg1.ts\n"
	pl, err := Parse(strings.NewReader(input), "", 42)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 2)
	assert.Equal(t, int64(42), pl.Segments[0].MediaSequence)
	assert.Equal(t, int64(43), pl.Segments[1].MediaSequence)
}
