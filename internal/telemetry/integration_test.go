package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

func TestHandlerSpansJoinIncomingTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("taskpulse-test"))
	r.HandleFunc("/api/v1/prioritize", func(w http.ResponseWriter, r *http.Request) {
		_, span := StartSpan(r.Context(), "prioritize.heuristic")
		span.End()
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	tests := []struct {
		name        string
		traceParent string
	}{
		{name: "new trace"},
		{name: "continued trace", traceParent: "00-" + incomingTraceID + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/prioritize", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("Expected status 204, got %d", rec.Code)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("Expected handler and server spans, got %d", len(spans))
			}
			// The syncer exports in end order, so the handler span comes first.
			child, server := spans[0], spans[1]
			if child.Name != "prioritize.heuristic" {
				t.Errorf("Expected handler span first, got %s", child.Name)
			}
			if child.Parent.SpanID() != server.SpanContext.SpanID() {
				t.Error("Expected handler span to be a child of the server span")
			}
			if child.SpanContext.TraceID() != server.SpanContext.TraceID() {
				t.Error("Expected both spans in one trace")
			}
			if tt.traceParent != "" {
				if got := server.SpanContext.TraceID().String(); got != incomingTraceID {
					t.Errorf("Expected incoming trace ID to be continued, got %s", got)
				}
			}
		})
	}
}
