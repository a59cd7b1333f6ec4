package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "eventsweep"

// SpanContext wraps an OTel span. Without a configured provider the global
// no-op tracer is used, so callers never need to check.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan starts a child span of ctx. End must be called.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// Context returns the context carrying the span
func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End completes the span
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records err on the span and marks it failed
func (sc *SpanContext) RecordError(err error) {
	if sc.span != nil && err != nil {
		sc.span.RecordError(err)
		sc.span.SetStatus(codes.Error, err.Error())
	}
}

// Span returns the underlying span
func (sc *SpanContext) Span() trace.Span {
	return sc.span
}
