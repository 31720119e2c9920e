// Package logging builds the zerolog.Logger instances threaded through
// every component, following the level-from-string pattern of
// go-server-3/internal/logging (adapted from zap to zerolog, matching the
// logger most of the teacher tree actually uses).
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger at the given level ("debug", "info", "warn", "error",
// or "" for info). A nil writer defaults to os.Stderr.
func New(level string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("logging: invalid level %q: %w", level, err)
		}
		lvl = parsed
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Nop returns a logger that discards everything, the default when an
// application does not configure one (logging-framework setup is an
// external collaborator per spec.md §1; the library only needs somewhere
// safe to write to by default).
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
