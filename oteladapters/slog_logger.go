// Package oteladapters provides OpenTelemetry-backed implementations of the
// small Logger interfaces consumed across the engine, for users who want
// plug-and-play observability without writing their own adapters.
package oteladapters

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// SlogBridgeLogger satisfies the engine's Logger interfaces through the
// OpenTelemetry slog bridge, giving automatic trace correlation via the
// global OpenTelemetry LoggerProvider.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger emitting through the OpenTelemetry
// slog bridge under the given instrumentation name.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogLogger wraps a plain slog logger without OpenTelemetry correlation.
func NewSlogLogger(logger *slog.Logger) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: logger}
}

// Debug logs a debug message.
func (l *SlogBridgeLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message.
func (l *SlogBridgeLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (l *SlogBridgeLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message.
func (l *SlogBridgeLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
