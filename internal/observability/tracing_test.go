package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracer_NoEndpointReturnsNoExportTracer(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	if tracer == nil {
		t.Fatal("NewTracer() returned nil tracer")
	}
	if tracer.provider != nil {
		t.Error("expected no provider when Endpoint is empty")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	if ctx == nil {
		t.Error("Start() returned nil context")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() returned error for no-op tracer: %v", err)
	}
}

func TestNewTracer_UnreachableEndpointStillReturnsUsableTracer(t *testing.T) {
	// otlptrace.New dials lazily, so an unreachable endpoint still succeeds
	// at construction time; spans must still be safe to start.
	tracer, shutdown := NewTracer(TraceConfig{
		ServiceName:    "test",
		Endpoint:       "127.0.0.1:0",
		EnableInsecure: true,
	})
	if tracer == nil {
		t.Fatal("NewTracer() returned nil tracer")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	if ctx == nil {
		t.Error("Start() returned nil context")
	}
	span.End()

	_ = shutdown(context.Background())
}

func TestTracer_StartWithSpanOptions(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	defer shutdown(context.Background())

	ctx, span := tracer.Start(context.Background(), "plan", SpanOptions{
		Attributes: []attribute.KeyValue{attribute.String("session_id", "sess-1")},
	})
	defer span.End()

	if ctx == nil {
		t.Error("Start() returned nil context")
	}
}

func TestTracer_RecordError(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	defer shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "op")
	defer span.End()

	// RecordError(nil) must be a no-op, not a panic.
	tracer.RecordError(span, nil)
	tracer.RecordError(span, errors.New("boom"))
}

func TestTracer_SetAttributes(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	defer shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "op")
	defer span.End()

	// Mixed types and an odd-length tail must not panic.
	tracer.SetAttributes(span, "tool.success", true, "tool.attempts", 2, "dangling")
}

func TestNopTracer(t *testing.T) {
	var tracer SpanTracer = NopTracer{}

	ctx := context.Background()
	gotCtx, span := tracer.Start(ctx, "op")
	if gotCtx != ctx {
		t.Error("NopTracer.Start() should return the context unchanged")
	}

	tracer.RecordError(span, errors.New("boom"))
	tracer.SetAttributes(span, "key", "value")
}
