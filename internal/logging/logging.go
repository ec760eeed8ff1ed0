// Package logging provides the simulator's leveled logger on top of zap.
//
// Three severities are used: Info for routine movement, Warn for schedule
// mismatches and Critical for injected infrastructure failures and repairs.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper over *zap.Logger adding the Critical severity
type Logger struct {
	z *zap.Logger
}

// New wraps an existing zap logger; nil yields a no-op logger
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return New(nil)
}

// Build creates a zap logger from a level name ("debug", "info", ...) and a
// format ("console" for development output, "json" for production).
func Build(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// With returns a child logger carrying the given fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Zap exposes the underlying logger
func (l *Logger) Zap() *zap.Logger { return l.z }

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.z.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.z.Warn(msg, fields...)
}

// Critical reports an infrastructure fault. It is emitted at error level and
// tagged severity=critical; it never terminates the process.
func (l *Logger) Critical(msg string, fields ...zap.Field) {
	l.z.Error(msg, append(fields, zap.String("severity", "critical"))...)
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}
