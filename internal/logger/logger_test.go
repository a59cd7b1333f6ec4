package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestTraceHandler_AddsLogFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithLogFields(context.Background(), LogFields{RunID: "42", Component: "eventsweep.cli"})
	ctx = WithLogFields(ctx, LogFields{Source: "https://example.org/cal.ics", SourceKind: "ics"})
	log.InfoContext(ctx, "source done", "delivered", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]string{
		"run_id":      "42",
		"source":      "https://example.org/cal.ics",
		"source_kind": "ics",
		"component":   "eventsweep.cli",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %q", k, rec[k], v)
		}
	}
	if _, ok := rec["trace_id"]; ok {
		t.Error("trace_id must be absent without a span")
	}
}

func TestWithLogFields_OverridesNonEmpty(t *testing.T) {
	ctx := WithLogFields(context.Background(), LogFields{Component: "a", RunID: "1"})
	ctx = WithLogFields(ctx, LogFields{Component: "b"})

	got := GetLogFields(ctx)
	if got.Component != "b" || got.RunID != "1" {
		t.Errorf("fields = %+v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
