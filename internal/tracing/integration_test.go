package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

// A traced similarity lookup produces one span per layer, all on the same
// trace: the HTTP middleware span, the dedup-check span, and the questions
// table read under it.
func TestTracedSimilarityLookup(t *testing.T) {
	recorder := recordSpans(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ctx, endLookup := tracing.StartSpan(ctx, "dedup_check")
		tracing.SetAttributes(ctx, attribute.Float64("threshold", 0.6))

		ctx, endRead := tracing.StartDBSpan(ctx, "questions", tracing.DBOperationQuery)
		endRead(nil)

		tracing.AddEvent(ctx, "candidates_filtered", attribute.Int("kept", 2))
		endLookup(nil)

		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/questions/q-1/similar", nil)
	rr := httptest.NewRecorder()
	middleware.Tracing("questionbank-api")(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Errorf("got %d spans, want 3", len(spans))
		for i, span := range spans {
			t.Logf("  span %d: %s", i, span.Name())
		}
	}

	byName := make(map[string]bool, len(spans))
	for _, span := range spans {
		byName[span.Name()] = true
	}
	for _, want := range []string{"GET /questions/q-1/similar", "dedup_check", "query questions"} {
		if !byName[want] {
			t.Errorf("missing span %q", want)
		}
	}

	// Context propagation: every span belongs to the same trace
	if len(spans) > 0 {
		traceID := spans[0].SpanContext().TraceID()
		for i, span := range spans {
			if span.SpanContext().TraceID() != traceID {
				t.Errorf("span %d on trace %s, want %s", i, span.SpanContext().TraceID(), traceID)
			}
		}
	}
}

func TestDBSpanAttributes(t *testing.T) {
	recorder := recordSpans(t)

	_, endSpan := tracing.StartDBSpan(context.Background(), "ranking_records", tracing.DBOperationUpdate)
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "update ranking_records" {
		t.Errorf("span name = %q, want %q", span.Name(), "update ranking_records")
	}

	want := map[attribute.Key]string{
		"db.system":    "postgresql",
		"db.operation": "update",
		"db.sql.table": "ranking_records",
	}
	for _, attr := range span.Attributes() {
		if expected, ok := want[attr.Key]; ok {
			if attr.Value.AsString() != expected {
				t.Errorf("%s = %q, want %q", attr.Key, attr.Value.AsString(), expected)
			}
			delete(want, attr.Key)
		}
	}
	for key := range want {
		t.Errorf("span missing attribute %s", key)
	}
}

// Span helpers must stay safe to call when tracing is off.
func TestSpanHelpersWithTracingDisabled(t *testing.T) {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName: "questionbank-api",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("failed to create disabled provider: %v", err)
	}
	if provider.IsEnabled() {
		t.Error("provider reports enabled, want disabled")
	}

	ctx, endSpan := tracing.StartSpan(context.Background(), "kanban_move")
	tracing.SetAttributes(ctx, attribute.String("scope_id", "org-1"))
	tracing.AddEvent(ctx, "column_reindexed")
	endSpan(nil)
}

// The middleware exposes the active trace ID so request logs can be joined
// to their traces.
func TestTraceIDExposedToHandlers(t *testing.T) {
	recorder := recordSpans(t)

	var gotTraceID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = middleware.GetTraceID(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/kanban/move", nil)
	rr := httptest.NewRecorder()
	middleware.Tracing("questionbank-api")(handler).ServeHTTP(rr, req)

	if gotTraceID == "" {
		t.Fatal("expected a trace ID inside the handler")
	}

	spans := recorder.Ended()
	if len(spans) == 0 {
		t.Fatal("expected a middleware span")
	}
	if spanTraceID := spans[0].SpanContext().TraceID().String(); gotTraceID != spanTraceID {
		t.Errorf("handler saw trace %s, span has %s", gotTraceID, spanTraceID)
	}
}
