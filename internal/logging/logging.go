// Package logging builds the process-wide slog logger. The daemon logs to
// stdout; the TUI client logs to a file (or discards) so log lines never
// corrupt the terminal.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text-handler logger writing to w at the given level. Level is
// one of "debug", "info", "warn", "error"; anything else means info.
func New(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// NewFromEnv builds a logger from BLABLACHAT_LOG (a file path, empty to
// discard) and BLABLACHAT_LOG_LEVEL. Used by the TUI client.
func NewFromEnv() *slog.Logger {
	path := os.Getenv("BLABLACHAT_LOG")
	if path == "" {
		return New(io.Discard, "")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return New(io.Discard, "")
	}
	return New(f, os.Getenv("BLABLACHAT_LOG_LEVEL"))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
