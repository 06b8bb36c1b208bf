// Package telemetry provides span helpers for business-level tracing.
// Only the OpenTelemetry API is used here; wiring an exporter is a
// deployment concern, and without one the global provider is a no-op.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name for business spans
const TracerName = "wakfboard-backend"

// Common attribute keys for business spans
const (
	SpanAttrDistrict     = "district"
	SpanAttrPartition    = "partition"
	SpanAttrCollectionID = "collection_id"
	SpanAttrGazetteNo    = "gazette_no"
	SpanAttrBatchSize    = "batch_size"
)

// StartSpan starts a span named after the operation, e.g.
// "dashboard.headline_stats". The caller must End the span.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return tracer.Start(ctx, spanName, opts...)
}

// RecordError records the error on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// String builds a string attribute
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int builds an int attribute
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

// Stringer builds a string attribute from any fmt.Stringer
func Stringer(key string, value fmt.Stringer) attribute.KeyValue {
	return attribute.String(key, value.String())
}

// TraceID returns the trace ID of the span in the context, or "" when
// no recording span is present
func TraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
