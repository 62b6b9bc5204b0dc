package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   Debug,
		"":        Info,
		"WARNING": Warn,
		"error":   Error,
		"bogus":   Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestZapLogger_WithAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(map[string]any{"draft_id": "d-1"})

	l.Info("section saved", map[string]any{"section": "xray", "error": errors.New("boom"), " ": "skip"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["draft_id"] != "d-1" {
		t.Fatalf("expected draft_id from With, got %#v", ctx)
	}
	if ctx["section"] != "xray" {
		t.Fatalf("expected section field, got %#v", ctx)
	}
	if ctx["error"] != "boom" {
		t.Fatalf("expected error field, got %#v", ctx)
	}
	if _, ok := ctx[" "]; ok {
		t.Fatalf("blank keys must be dropped")
	}
}

func TestZapLogger_LevelFilter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := FromZap(zap.New(core))

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)

	if logs.Len() != 1 {
		t.Fatalf("expected only warn entry, got %d", logs.Len())
	}
}
