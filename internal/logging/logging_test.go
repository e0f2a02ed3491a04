package logging_test

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wardenhq/warden/internal/logging"
)

func TestNew_DefaultLevelIsInfo(t *testing.T) {
	logger, err := logging.New(0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level enabled by default")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level disabled by default")
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	logger, err := logging.New(1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level enabled at verbosity 1")
	}
}

func TestNew_QuietSuppressesInfo(t *testing.T) {
	logger, err := logging.New(3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level disabled when quiet, even at high verbosity")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn level still enabled when quiet")
	}
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := logging.Nop()
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		// zap.NewNop's core reports enabled=false for all levels.
		t.Fatalf("expected nop logger to report all levels disabled")
	}
	logger.Info("should be discarded", zap.String("k", "v"))
}
