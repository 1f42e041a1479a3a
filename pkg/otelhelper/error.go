package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on the span and marks its status as failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("execution_error", trace.WithAttributes(attrs...))
}

// SetNodeError records a node-level failure with the node identified in the
// span attributes.
func SetNodeError(span trace.Span, err error, nodeID, nodeType string) {
	SetError(span, err,
		attribute.String(NodeIDKey, nodeID),
		attribute.String(NodeTypeKey, nodeType),
	)
}
