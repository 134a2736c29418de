package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Development(t *testing.T) {
	log, err := New(Options{Development: true})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic
	log.Info("test message")
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("development logger should enable debug")
	}
}

func TestNew_Production(t *testing.T) {
	log, err := New(Options{})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not enable debug")
	}
}

func TestNew_Level(t *testing.T) {
	log, err := New(Options{Level: "warn", Encoding: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("warn logger should not enable info")
	}

	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestMust(t *testing.T) {
	// Should not panic
	log := Must(Options{Development: true})
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}
