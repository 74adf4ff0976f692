//go:build linux

package player

import (
	"io"

	"golang.org/x/sys/unix"
)

// setPipeBufferSize requests a larger kernel pipe buffer for w's
// underlying file descriptor via F_SETPIPE_SZ, so a busy session with
// several concurrently active streams gets proportionally more slack
// before the writer goroutine blocks on a full pipe.
func setPipeBufferSize(w io.Writer, size int) error {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return nil
	}
	_, err := unix.FcntlInt(f.Fd(), unix.F_SETPIPE_SZ, size)
	return err
}
