//go:build !go1.21

package log

import (
	"golang.org/x/exp/slog"
)

// Logger and Handler alias the slog types so the rest of the module never
// imports slog directly.
type Logger = slog.Logger
type Handler = slog.Handler

var defaultLogger *Logger = slog.Default()

// SetDefaultLogger replaces the logger used by every package that was not
// handed a logger of its own.
//
// It overrides the logger created by SetDefaultHandler.
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

// SetDefaultHandler wraps handler in a new default logger.
//
// It overrides the logger specified by SetDefaultLogger.
func SetDefaultHandler(handler Handler) {
	defaultLogger = slog.New(handler)
}

// DefaultLogger returns the current default logger.
func DefaultLogger() *Logger {
	return defaultLogger
}

// Component returns the default logger tagged with the component name.
func Component(name string) *Logger {
	return defaultLogger.With(slog.String("component", name))
}
