package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithOptions_InvalidLevel(t *testing.T) {
	if _, err := NewWithOptions(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewWithOptions_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		l, err := NewWithOptions(Options{Level: lvl})
		if err != nil {
			t.Fatalf("level %q: %v", lvl, err)
		}
		l.Debug("probe")
	}
}

func TestContextRoundTrip(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).With(zap.String("run_id", "r1"))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ContextMap()["run_id"] != "r1" {
		t.Errorf("fields = %v", entries[0].ContextMap())
	}
}

func TestFromContextDefaultsToNop(t *testing.T) {
	FromContext(context.Background()).Error("dropped")
}
