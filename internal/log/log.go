// Package log provides the logger used across the engine. Components
// receive a log.Logger via their constructors; there is no global.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so components depend on the standard
// type and can add context with With().
type Logger = *slog.Logger

// New creates a logger writing to stderr at the given level.
// Recognized levels: "debug", "info", "warn", "error".
func New(level string, json bool) Logger {
	return NewWithWriter(os.Stderr, level, json)
}

// NewWithWriter creates a logger writing to w. Useful in tests to
// capture output.
func NewWithWriter(w io.Writer, level string, json bool) Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
