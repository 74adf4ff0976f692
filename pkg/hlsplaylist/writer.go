package hlsplaylist

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write serializes pl back to M3U8 text. It is the inverse of Parse: parsing
// the output of Write and parsing again yields the same segment list, modulo
// fields Parse never captures (titles, version tags) which this writer
// never emits either.
func Write(w io.Writer, pl *Playlist) error {
	var b strings.Builder
	b.WriteString(tagExtM3U)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s%d\n", tagTargetDuration, int(pl.TargetDuration.Seconds()))
	fmt.Fprintf(&b, "%s%d\n", tagMediaSequence, pl.MediaSequence)

	for _, seg := range pl.Segments {
		if seg.Discontinuity {
			b.WriteString(tagDiscontinuity)
			b.WriteByte('\n')
		}
		if seg.SCTE35AdStart {
			b.WriteString(tagSCTE35Out)
			b.WriteByte('\n')
		}
		if seg.SCTE35AdEnd {
			b.WriteString(tagSCTE35In)
			b.WriteByte('\n')
		}
		b.WriteString(tagExtInf)
		b.WriteString(strconv.FormatFloat(seg.Duration.Seconds(), 'f', 3, 64))
		b.WriteString(",\n")
		b.WriteString(seg.URL)
		b.WriteByte('\n')
	}

	if !pl.Live {
		b.WriteString(tagEndList)
		b.WriteByte('\n')
	}

	_, err := w.Write([]byte(b.String()))
	return err
}
