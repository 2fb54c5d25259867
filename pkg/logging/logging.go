// Package logging assembles the loggers fill sessions use. Sessions log
// turn boundaries and patch outcomes through log/slog; this package adds
// the fan-out plumbing for callers that want the same stream in more
// than one place.
package logging

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// Level is the shared level threshold for loggers built here.
var Level = new(slog.LevelVar)

// New builds a logger fanning every record out to the supplied handlers.
// With no handlers it returns a silent logger, the right default for
// library use.
func New(handlers ...slog.Handler) *slog.Logger {
	switch len(handlers) {
	case 0:
		return Discard()
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(slogmulti.Fanout(handlers...))
	}
}

// Text builds a logger writing human-readable lines to w at the shared
// level.
func Text(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
}
