package hlsplaylist

import (
	"bufio"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Tag prefixes recognized per spec.md §4.2. Anything else is ignored.
const (
	tagExtM3U         = "#EXTM3U"
	tagExtInf         = "#EXTINF:"
	tagTargetDuration = "#EXT-X-TARGETDURATION:"
	tagMediaSequence  = "#EXT-X-MEDIA-SEQUENCE:"
	tagPlaylistType   = "#EXT-X-PLAYLIST-TYPE:"
	tagEndList        = "#EXT-X-ENDLIST"
	tagDiscontinuity  = "#EXT-X-DISCONTINUITY"
	tagSCTE35Out      = "#EXT-X-SCTE35-OUT"
	tagSCTE35In       = "#EXT-X-SCTE35-IN"
)

const maxLineSize = 1 << 20 // 1MB, long enough for any realistic tokenized segment URL

// Parse parses the raw text of an HLS media playlist. mediaSequenceBase is
// the starting sequence number used when the playlist carries no
// EXT-X-MEDIA-SEQUENCE tag; a tag's value replaces it. The i-th segment in
// the returned list gets sequence base+i per spec.md §4.2.
//
// playlistURL, if non-empty, is used to resolve relative segment URLs.
//
// Parse never remembers state across calls; continuity across refreshes is
// the sequencer's job. A malformed playlist produces whatever segments
// could be recovered — individual unparseable lines are skipped, and an
// entirely empty or unrecognizable document yields an empty segment list,
// not an error.
func Parse(r io.Reader, playlistURL string, mediaSequenceBase int64) (*Playlist, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	pl := &Playlist{
		MediaSequence: mediaSequenceBase,
		Live:          true,
	}

	var pendingDuration time.Duration
	var havePendingExtInf bool
	var pendingDiscontinuity bool
	var pendingAdStart bool
	var pendingAdEnd bool
	var index int64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == tagExtM3U:
			continue

		case strings.HasPrefix(line, tagExtInf):
			d, ok := parseExtInfDuration(line)
			if ok {
				pendingDuration = d
				havePendingExtInf = true
			}

		case strings.HasPrefix(line, tagTargetDuration):
			if secs, err := strconv.Atoi(strings.TrimPrefix(line, tagTargetDuration)); err == nil {
				pl.TargetDuration = time.Duration(secs) * time.Second
			}

		case strings.HasPrefix(line, tagMediaSequence):
			if seq, err := strconv.ParseInt(strings.TrimPrefix(line, tagMediaSequence), 10, 64); err == nil {
				pl.MediaSequence = seq
				mediaSequenceBase = seq
			}

		case strings.HasPrefix(line, tagPlaylistType):
			// VOD/EVENT recognized only insofar as ENDLIST governs Live;
			// the type string itself isn't otherwise consumed downstream.

		case line == tagEndList:
			pl.Live = false

		case line == tagDiscontinuity:
			pendingDiscontinuity = true
			pl.HasDiscontinuity = true

		case strings.HasPrefix(line, tagSCTE35Out):
			pendingAdStart = true

		case strings.HasPrefix(line, tagSCTE35In):
			pendingAdEnd = true

		case strings.HasPrefix(line, "#"):
			// Unknown tag, ignored per spec.md §4.2.

		default:
			// A non-tag line is a segment URL.
			seg := Segment{
				URL:           resolveSegmentURL(playlistURL, line),
				MediaSequence: mediaSequenceBase + index,
				Duration:      pendingDuration,
				Discontinuity: pendingDiscontinuity,
				SCTE35AdStart: pendingAdStart,
				SCTE35AdEnd:   pendingAdEnd,
			}
			pl.Segments = append(pl.Segments, seg)
			index++

			pendingDuration = 0
			havePendingExtInf = false
			pendingDiscontinuity = false
			pendingAdStart = false
			pendingAdEnd = false
		}
	}
	_ = havePendingExtInf // duration attaches to the next URL line regardless; flag kept for clarity of intent

	if err := scanner.Err(); err != nil {
		return pl, nil //nolint:nilerr // a scan failure mid-stream still returns whatever segments were recovered, per spec.md §4.2 "empty sequence if malformed past recovery"
	}

	return pl, nil
}

// parseExtInfDuration extracts the duration component of an EXTINF line,
// e.g. "#EXTINF:6.006,title" -> 6.006s. The optional title is ignored.
func parseExtInfDuration(line string) (time.Duration, bool) {
	rest := strings.TrimPrefix(line, tagExtInf)
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		rest = rest[:comma]
	}
	rest = strings.TrimSpace(rest)
	secs, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// resolveSegmentURL resolves a segment reference against the playlist URL.
// Per spec.md §4.2: relative URLs are resolved by replacing everything
// after the last '/' in the playlist URL; absolute URLs (with a scheme)
// pass through unchanged.
func resolveSegmentURL(playlistURL, ref string) string {
	if playlistURL == "" || hasScheme(ref) {
		return ref
	}
	lastSlash := strings.LastIndexByte(playlistURL, '/')
	if lastSlash < 0 {
		return ref
	}
	simple := playlistURL[:lastSlash+1] + ref

	// The simple rule above doesn't understand "../" segments. Fall back
	// to net/url resolution only when that's needed to produce a valid URL,
	// since spec.md's documented behavior is the simpler truncate-and-join.
	if strings.Contains(ref, "..") {
		if base, err := url.Parse(playlistURL); err == nil {
			if resolved, err := base.Parse(ref); err == nil {
				return resolved.String()
			}
		}
	}
	return simple
}

func hasScheme(s string) bool {
	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return false
	}
	scheme := s[:colon]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}
