// Package tracing wraps the OpenTelemetry tracer used by services. Without an
// SDK installed the global provider is a no-op and spans cost nothing.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is a named tracer for one bounded context.
type Tracer struct {
	tracer trace.Tracer
}

func New(name string) Tracer {
	return Tracer{tracer: otel.Tracer(name)}
}

// Start opens a span for a service operation.
func (t Tracer) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it. Intended for defer with a
// named error result:
//
//	ctx, span := tracer.Start(ctx, "shelter.MoveOccupant")
//	defer func() { tracing.End(span, err) }()
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// String is shorthand for attribute.String.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
