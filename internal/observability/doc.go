// Package observability provides the core's structured logging, metrics,
// and distributed tracing instrumentation.
//
// # Logging
//
// Logging is built on log/slog with:
//   - Automatic request/session/user/channel ID correlation from context
//   - Sensitive data redaction (API keys, bearer tokens, JWTs, generic secrets)
//   - JSON output for production, text for development
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	logger.Info(ctx, "step completed",
//	    "step", stepNumber,
//	    "tool", toolName,
//	)
//
//	logger.Error(ctx, "llm request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // redacted automatically
//	)
//
// # Metrics
//
// Metrics are emitted through the Recorder interface, implemented by
// PrometheusRecorder. The executor, planner, and tool envelope call Recorder
// the same way they call Logger — the scrape endpoint that exposes the
// underlying registry is a caller concern, not this package's.
//
//	reg := prometheus.NewRegistry()
//	rec := observability.NewPrometheusRecorder(reg)
//
//	start := time.Now()
//	// ... invoke tool ...
//	rec.ToolInvoked("web_search", err == nil, attempts, time.Since(start))
//
// Tests that don't care about metrics can use observability.NopRecorder{}.
//
// # Tracing
//
// Spans are emitted through the SpanTracer interface, implemented by Tracer
// (backed by go.opentelemetry.io/otel). plan(), think(), and act() in
// internal/executor each open one span per call; exporting those spans to a
// collector is opt-in via TraceConfig.Endpoint, but span creation itself
// happens unconditionally so trace IDs show up in logs even with no
// collector configured.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "agentcore",
//	    Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "think")
//	defer span.End()
//
// Tests that don't care about tracing can use observability.NopTracer{}.
package observability
