// Package log provides structured logging for go-facelabel.
// It wraps slog so every package shares one handler and level.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger. format is "json" or "text"; when it is
// empty, JSON is used with GO_ENV=production and text otherwise.
// Only the first call has any effect.
func Init(level, format string) {
	once.Do(func() {
		logger = newLogger(os.Stdout, level, format)
		slog.SetDefault(logger)
	})
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if format == "" && os.Getenv("GO_ENV") == "production" {
		format = "json"
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info", "")
	}
	return logger
}

// Component returns a logger tagged with the component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
