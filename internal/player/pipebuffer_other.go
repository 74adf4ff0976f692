//go:build !linux

package player

import "io"

// setPipeBufferSize is a no-op outside Linux: F_SETPIPE_SZ has no portable
// equivalent, and the OS default pipe buffer is used instead.
func setPipeBufferSize(w io.Writer, size int) error {
	return nil
}
