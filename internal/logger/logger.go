// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context so every decision
// the engine makes (signal, rejection, exit) is machine-parseable.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a
// slog.Level. Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
