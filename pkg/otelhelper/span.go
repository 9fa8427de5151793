package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MarkSpanFailed records err on the span and flips its status to Error.
// Extra attributes end up on the failure event so traces carry the node
// and execution ids alongside the error message.
func MarkSpanFailed(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if len(attrs) > 0 {
		span.AddEvent("node_failed", trace.WithAttributes(attrs...))
	}
}
