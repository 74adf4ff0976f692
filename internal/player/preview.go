package player

import (
	"regexp"
	"strings"
)

// CommandPreview renders the resolved player command line for logging and
// diagnostics before launch, with anything that looks like a credential
// redacted. Grounded on the original source's practice of logging its full
// launch line before spawning the player process.
type CommandPreview struct {
	Binary  string
	Args    []string
	Command string
	Notes   []string
}

// secretLikeArg matches arguments that look like they carry a credential,
// so PreviewCommand can redact them rather than log playback URLs verbatim.
var secretLikeArg = regexp.MustCompile(`(?i)(token|password|secret|key|auth)=([^&\s]+)`)

// PreviewCommand builds a CommandPreview for cfg, suitable for a one-line
// log message before Launch.
func PreviewCommand(cfg Config) *CommandPreview {
	preview := &CommandPreview{
		Binary: cfg.Path,
		Args:   make([]string, len(cfg.Args)),
	}

	for i, arg := range cfg.Args {
		preview.Args[i] = redactArg(arg)
	}

	var notes []string
	if cfg.StdoutMode == "inherit" {
		notes = append(notes, "player stdout inherited")
	}
	if cfg.StderrMode == "inherit" {
		notes = append(notes, "player stderr inherited")
	}
	preview.Notes = notes

	parts := append([]string{preview.Binary}, preview.Args...)
	preview.Command = strings.Join(parts, " ")
	return preview
}

func redactArg(arg string) string {
	return secretLikeArg.ReplaceAllString(arg, "$1=REDACTED")
}
