// Package logger configures slog with context-carried run fields
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/eventsweep/internal/model"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// Setup installs the default slog logger. With telemetry enabled records go
// to the OTLP log bridge, otherwise to w as text or JSON.
func Setup(cfg *model.Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Log.Level)}

	var handler slog.Handler
	switch {
	case cfg.Telemetry.Enabled():
		handler = NewTraceHandler(otelslog.NewHandler(
			cfg.Telemetry.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		))
	case strings.EqualFold(cfg.Log.Format, "json"):
		handler = NewTraceHandler(slog.NewJSONHandler(w, opts))
	default:
		handler = NewTraceHandler(slog.NewTextHandler(w, opts))
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TraceHandler adds trace ids and LogFields from the context to each record
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	fields := GetLogFields(ctx)
	if fields.RunID != "" {
		r.AddAttrs(slog.String("run_id", fields.RunID))
	}
	if fields.Source != "" {
		r.AddAttrs(slog.String("source", fields.Source))
	}
	if fields.SourceKind != "" {
		r.AddAttrs(slog.String("source_kind", fields.SourceKind))
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}
