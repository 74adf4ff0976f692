package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewCommand_RendersBinaryAndArgs(t *testing.T) {
	cfg := Config{Path: "ffplay", Args: []string{"-"}}
	preview := PreviewCommand(cfg)
	assert.Equal(t, "ffplay -", preview.Command)
}

func TestPreviewCommand_RedactsTokenLikeArgs(t *testing.T) {
	cfg := Config{Path: "mpv", Args: []string{"https://example.com/live?token=abc123"}}
	preview := PreviewCommand(cfg)
	assert.Contains(t, preview.Args[0], "token=REDACTED")
	assert.NotContains(t, preview.Args[0], "abc123")
}

func TestPreviewCommand_NotesInheritedStreams(t *testing.T) {
	cfg := Config{Path: "ffplay", StdoutMode: "inherit", StderrMode: "inherit"}
	preview := PreviewCommand(cfg)
	assert.Len(t, preview.Notes, 2)
}
