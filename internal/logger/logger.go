package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

func NewLogger(level string) Logger {
	return slog.New(newTint(os.Stderr, level))
}

// NewLoggerWithSentry creates a logger that auto-reports errors to Sentry
func NewLoggerWithSentry(level string) Logger {
	return slog.New(NewSentryHandler(newTint(os.Stderr, level)))
}

func newTint(w io.Writer, level string) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
	})
}

// ParseLevel maps a level name to a slog level, defaulting to debug.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
