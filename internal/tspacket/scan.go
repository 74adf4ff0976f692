package tspacket

import (
	"errors"
	"log/slog"
)

// ErrNoSync is returned by Scan when no valid sync position is found
// anywhere in the segment.
var ErrNoSync = errors.New("tspacket: no sync byte found in segment")

// Resync scans forward from offset 0 for the first 0x47 byte whose position
// plus PacketSize also lies on a 0x47 byte. This double-check rejects false
// syncs on a 0x47 byte appearing within elementary-stream payload. When
// data is shorter than two packets, or no position passes the double-check,
// it falls back to the first single 0x47 byte (anywhere in short data,
// otherwise within the last 2*PacketSize-1 bytes). Returns -1 if even that
// finds nothing.
func Resync(data []byte) int {
	if len(data) < 2*PacketSize {
		// Not enough bytes to double-check; fall back to a single-byte
		// check so short segments (tests, truncated captures) still sync.
		for i := 0; i < len(data); i++ {
			if data[i] == SyncByte {
				return i
			}
		}
		return -1
	}
	for i := 0; i <= len(data)-2*PacketSize; i++ {
		if data[i] == SyncByte && data[i+PacketSize] == SyncByte {
			return i
		}
	}
	// No position satisfies the double-check over the full segment; accept
	// a single matching byte near the end rather than dropping a short
	// trailing segment entirely.
	for i := len(data) - 2*PacketSize + 1; i < len(data); i++ {
		if i >= 0 && data[i] == SyncByte {
			return i
		}
	}
	return -1
}

// Scan walks a downloaded segment's raw bytes starting at the resync
// offset, reading PacketSize chunks. It stops at the first chunk whose
// first byte isn't SyncByte (including a truncated trailing chunk, which
// is discarded per spec.md §4.4's failure-mode note). Returns the raw
// packet slices in segment order; each slice aliases data.
func Scan(data []byte, logger *slog.Logger) ([][]byte, error) {
	offset := Resync(data)
	if offset < 0 {
		if logger != nil {
			logger.Warn("tspacket: no sync found in segment", slog.Int("segment_bytes", len(data)))
		}
		return nil, ErrNoSync
	}

	var packets [][]byte
	for offset+PacketSize <= len(data) {
		if data[offset] != SyncByte {
			break
		}
		packets = append(packets, data[offset:offset+PacketSize])
		offset += PacketSize
	}
	return packets, nil
}
