package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitFallsBackToInfo(t *testing.T) {
	original := Logger
	defer func() { Logger = original }()

	logger, err := Init("not-a-level")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level to be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be disabled")
	}
	if Logger != logger {
		t.Fatalf("expected global logger to be replaced")
	}
}

func TestNamedHandlesNil(t *testing.T) {
	if Named(nil, "attachments") == nil {
		t.Fatalf("expected named logger")
	}
}
