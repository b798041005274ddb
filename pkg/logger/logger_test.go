package logger

import (
	"errors"
	"testing"
	"time"

	"gatekeep/pkg/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "verbose"})
	if err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestNewAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "fatal", "disabled"} {
		if _, err := New(&config.LoggingConfig{Level: level}); err != nil {
			t.Errorf("level %q: unexpected error: %v", level, err)
		}
	}
}

func TestTestLoggerCaptures(t *testing.T) {
	tl := NewTestLogger()

	tl.Info("engine started")
	tl.WithField("identity", "abc").Warn("request denied")
	tl.WithError(errors.New("boom")).Error("sweep failed")

	if !tl.HasMessage("INFO", "engine started") {
		t.Error("missing info message")
	}
	if !tl.HasMessage("WARN", "request denied") {
		t.Error("missing warn message")
	}

	msgs := tl.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Fields["identity"] != "abc" {
		t.Errorf("expected identity field, got %v", msgs[1].Fields)
	}
	if msgs[2].Fields["error"] != "boom" {
		t.Errorf("expected error field, got %v", msgs[2].Fields)
	}

	tl.Clear()
	if len(tl.Messages()) != 0 {
		t.Error("expected no messages after Clear")
	}
}

func TestHelpersUseGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	LogDecision("client-1", false, 30*time.Second)
	if !tl.HasMessage("WARN", "Request denied, over budget") {
		t.Error("expected denial to log at warn")
	}

	LogDecision("client-1", true, 0)
	if !tl.HasMessage("DEBUG", "Request admitted") {
		t.Error("expected admission to log at debug")
	}

	LogSweep(3, 10)
	if !tl.HasMessage("DEBUG", "Eviction sweep completed") {
		t.Error("expected sweep log")
	}
}
