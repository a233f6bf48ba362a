// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps handlers in an OpenTelemetry server span. Incoming
// traceparent/tracestate headers are honored, so a browser client or an
// upstream proxy can stitch its trace onto ours.
//
// Place it ahead of RequestID in the chain so the request ID lands inside
// the span's context.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

// spanName names server spans "METHOD /path", e.g. "POST /kanban/move".
func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// GetTraceID returns the active trace ID for the request, or "" when
// no span is recording. Handlers log it so traces and log lines can be
// cross-referenced.
func GetTraceID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span ID for the request, or "" when no
// span is recording.
func GetSpanID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}
