// Package logging builds the zap.Logger used across cmd/warden,
// selecting a development or production encoder
// config from the same --verbose/--quiet precedence the CLI's root
// command already applies to other settings.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. verbosity is the repeated -v count (0 means
// info-level production output; 1 enables debug; 2+ enables
// development mode, which adds caller/stacktrace annotations and
// console encoding). quiet suppresses everything below warn level
// regardless of verbosity.
func New(verbosity int, quiet bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbosity >= 2 {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch {
	case quiet:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case verbosity >= 1:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

// Nop returns a logger that discards everything, for call sites (tests,
// library embedders) that have not configured logging explicitly.
func Nop() *zap.Logger {
	return zap.NewNop()
}
