// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New returns a JSON logger in production and a coloured charmbracelet
// logger everywhere else. Both are exposed through log/slog.
func New(env string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	h := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "empower",
	})
	return slog.New(h)
}

// Discard is used by tests that do not assert on log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
