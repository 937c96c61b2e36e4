// Package logging builds the zap loggers used by the bot, the scraper and the CLI.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger at the given level ("debug", "info",
// "warn", "error"). Development mode switches to console output with
// caller and stack traces on warnings.
func New(level string, development bool) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Must is New for entrypoints: it falls back to a production logger at
// info level when the requested configuration is invalid.
func Must(level string, development bool) *zap.SugaredLogger {
	l, err := New(level, development)
	if err == nil {
		return l
	}
	fallback, _ := zap.NewProduction()
	s := fallback.Sugar()
	s.Warnf("Falling back to default logger: %v", err)
	return s
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewConsole returns a human-readable logger writing to w, for CLIs that
// keep stdout for data.
func NewConsole(w io.Writer, level zapcore.Level) *zap.SugaredLogger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
