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

	"github.com/benvon/smart-health/internal/handlers"
	"github.com/benvon/smart-health/internal/session"
	"github.com/benvon/smart-health/internal/storage"
)

// TestTraceContextPropagation checks that an incoming traceparent reaches the
// spans of the interaction routes
func TestTraceContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	manager := session.NewManager(storage.NewMemoryStore())
	if err := manager.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = manager.Teardown(context.Background()) })

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceName))
	handlers.NewInteractionHandler(manager, nil).RegisterRoutes(r.PathPrefix("/api/v1/interactions").Subrouter())

	const traceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	exporter.Reset()

	req := httptest.NewRequest("GET", "/api/v1/interactions/layout", nil)
	req.Header.Set("traceparent", traceParent)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", rr.Code)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("Failed to flush tracer provider: %v", err)
	}

	var found bool
	for _, span := range exporter.GetSpans() {
		if span.SpanContext.TraceID().String() == "4bf92f3577b34da6a3ce929d0e0e4736" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a span in the propagated trace, got %d spans", len(exporter.GetSpans()))
	}
}

// TestHydrationSpan checks that session hydration is traced under the caller's span
func TestHydrationSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	manager := session.NewManager(storage.NewMemoryStore())

	ctx, parent := tp.Tracer("test").Start(context.Background(), "startup")
	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	parent.End()
	t.Cleanup(func() { _ = manager.Teardown(context.Background()) })

	for _, span := range exporter.GetSpans() {
		if span.Name != "session.hydrate" {
			continue
		}
		if span.Parent.SpanID() != parent.SpanContext().SpanID() {
			t.Errorf("session.hydrate parent = %s, want %s", span.Parent.SpanID(), parent.SpanContext().SpanID())
		}
		return
	}
	t.Error("Expected a session.hydrate span")
}
