// Package obs wraps every ingestion pipeline stage in an
// OpenTelemetry-shaped span: SetStatus(ERROR) and RecordException fire
// on failure regardless of whether a tracing exporter is configured.
// Grounded on evalgo-org-eve's otel package (tracer-from-context idiom)
// and graph_builder.py's get_tracer().start_as_current_span wrapping of
// every DAG node. Tracing exporters are out of scope (spec.md section
// 1): with no TracerProvider registered, go.opentelemetry.io/otel
// defaults to a no-op tracer, so this package never has to special-case
// "tracing disabled" itself.
package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies this module's spans in whatever backend a
// TracerProvider is eventually wired to.
const TracerName = "github.com/R3E-Network/graphctl/internal/ingestion"

// tracer returns the global tracer for TracerName. otel.Tracer resolves
// against whatever TracerProvider is registered globally, falling back
// to the library's no-op implementation when none is.
func tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Span runs fn inside a child span named name. A returned error marks
// the span Error status and records the exception before being
// propagated to the caller unchanged; ctx carries the active span so
// nested Span calls (e.g. a sub-stage within a DAG node) attach as
// children.
func Span(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer().Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// SpanValue is Span's generic sibling for stage functions that return a
// value alongside an error, since IngestionState transitions commonly
// need both.
func SpanValue[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer().Start(ctx, name)
	defer span.End()

	value, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return value, err
	}
	span.SetStatus(codes.Ok, "")
	return value, nil
}

// SetAttribute is a thin convenience wrapper so callers don't need to
// import go.opentelemetry.io/otel/attribute directly for the common
// string/int attribute cases this module needs (file_count, hop, etc).
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
