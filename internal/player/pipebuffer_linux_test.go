//go:build linux

package player

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPipeBufferSize_ResizesPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	err = setPipeBufferSize(w, 1024*1024)
	assert.NoError(t, err)
}

func TestSetPipeBufferSize_IgnoresNonFdWriter(t *testing.T) {
	var sb stringWriter
	err := setPipeBufferSize(&sb, 1024)
	assert.NoError(t, err)
}

type stringWriter struct{}

func (stringWriter) Write(p []byte) (int, error) { return len(p), nil }
