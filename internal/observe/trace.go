package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voxime/pkg/types"
)

const tracerName = "github.com/MrWong99/voxime"

// Tracer returns the voxime tracer from the global TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartRecognition starts the span covering one dictation attempt, from
// opening the stream until results are delivered or the attempt ends.
func StartRecognition(ctx context.Context, provider string, fc types.FieldContext, swipe bool) (context.Context, trace.Span) {
	return StartSpan(ctx, "voxime.recognize",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("voxime.provider", provider),
			attribute.String("voxime.locale", fc.Locale),
			attribute.String("voxime.field.package", fc.Attributes.Package),
			attribute.Bool("voxime.swipe", swipe),
		),
	)
}

// EndRecognition records the outcome on span and ends it. A non-nil err marks
// the span as failed.
func EndRecognition(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("voxime.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// DictationID returns the trace ID of the span in ctx, or "" without one.
// Every dictation attempt runs in its own trace, so the ID ties together the
// log lines and metrics of one attempt.
func DictationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns slog.Default() with trace_id and span_id attached when ctx
// carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l
}
