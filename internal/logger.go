package internal

import (
	"io"
	"log/slog"
)

// ParseLevel reads LOG_LEVEL. It accepts slog's names in any case, with an
// optional offset such as "warn+2", and falls back to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger writes human-readable text in development and JSON everywhere
// else. Every record carries the service and environment so shipped logs
// from several deployments can be told apart.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	dev := env == "development"
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: dev,
	}

	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "chartwise", "env", env)
}
