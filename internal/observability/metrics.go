package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics port the executor, planner, and tool envelope emit
// through. Keeping it an interface lets the core instrument itself the same
// way it emits log lines, while the scrape endpoint that exposes
// PrometheusRecorder's registry stays a caller concern.
type Recorder interface {
	// StepCompleted records one ReAct loop iteration (Thinking through
	// Observing/StateUpdate) for a session.
	StepCompleted(sessionID string, duration time.Duration)

	// ToolInvoked records one tool-envelope call, including retries rolled
	// into a single terminal outcome.
	ToolInvoked(tool string, success bool, attempts int, duration time.Duration)

	// LLMRequest records one completion call to an LLM provider.
	LLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)

	// PlanGenerated records one planner.Plan call's outcome.
	PlanGenerated(status string, duration time.Duration, itemCount int)

	// CompressionEvent records a history compression attempt outcome:
	// "summarized", "tail_retained", or "skipped".
	CompressionEvent(outcome string)

	// SessionStarted/SessionEnded track concurrently active executor runs.
	SessionStarted()
	SessionEnded(duration time.Duration)
}

// PrometheusRecorder implements Recorder by registering a small set of
// counters/histograms scoped to the loop itself — no HTTP, webhook, or
// messaging-channel labels, since those surfaces live outside the core.
type PrometheusRecorder struct {
	stepDuration *prometheus.HistogramVec

	toolCounter  *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolAttempts *prometheus.HistogramVec

	llmCounter  *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	planCounter  *prometheus.CounterVec
	planDuration *prometheus.HistogramVec
	planItems    prometheus.Histogram

	compressionCounter *prometheus.CounterVec

	activeSessions  prometheus.Gauge
	sessionDuration prometheus.Histogram
}

// NewPrometheusRecorder registers the core's metrics against reg. Pass
// prometheus.NewRegistry() for test isolation, or a shared registry (e.g.
// prometheus.DefaultRegisterer) in production; promauto.With handles both.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_loop_step_duration_seconds",
			Help:    "Duration of one ReAct loop iteration.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"session_id"}),

		toolCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_invocations_total",
			Help: "Total tool invocations by tool name and outcome.",
		}, []string{"tool", "status"}),

		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_tool_invocation_duration_seconds",
			Help:    "Duration of tool invocations, including retries.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),

		toolAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_tool_invocation_attempts",
			Help:    "Attempts consumed per tool invocation before a terminal outcome.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}, []string{"tool"}),

		llmCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_requests_total",
			Help: "Total LLM completion calls by provider, model, and status.",
		}, []string{"provider", "model", "status"}),

		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_llm_request_duration_seconds",
			Help:    "Duration of LLM completion calls.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_tokens_total",
			Help: "Tokens consumed by provider, model, and kind (prompt|completion).",
		}, []string{"provider", "model", "kind"}),

		planCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_plan_generations_total",
			Help: "Total planner.Plan calls by outcome.",
		}, []string{"status"}),

		planDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_plan_generation_duration_seconds",
			Help:    "Duration of planner.Plan calls, including parse retries.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),

		planItems: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_plan_item_count",
			Help:    "Number of TodoItems in a successfully generated plan.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),

		compressionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_history_compressions_total",
			Help: "Total history compression attempts by outcome.",
		}, []string{"outcome"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentcore_active_sessions",
			Help: "Number of executor runs currently in flight.",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_session_run_duration_seconds",
			Help:    "Wall-clock duration of one Execute/Answer call.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
	}
}

func (r *PrometheusRecorder) StepCompleted(sessionID string, duration time.Duration) {
	r.stepDuration.WithLabelValues(sessionID).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ToolInvoked(tool string, success bool, attempts int, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.toolCounter.WithLabelValues(tool, status).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	r.toolAttempts.WithLabelValues(tool).Observe(float64(attempts))
}

func (r *PrometheusRecorder) LLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	r.llmCounter.WithLabelValues(provider, model, status).Inc()
	r.llmDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		r.llmTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		r.llmTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

func (r *PrometheusRecorder) PlanGenerated(status string, duration time.Duration, itemCount int) {
	r.planCounter.WithLabelValues(status).Inc()
	r.planDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "success" {
		r.planItems.Observe(float64(itemCount))
	}
}

func (r *PrometheusRecorder) CompressionEvent(outcome string) {
	r.compressionCounter.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) SessionStarted() {
	r.activeSessions.Inc()
}

func (r *PrometheusRecorder) SessionEnded(duration time.Duration) {
	r.activeSessions.Dec()
	r.sessionDuration.Observe(duration.Seconds())
}

// NopRecorder discards every metric. It is the default Recorder so callers
// that don't care about metrics never pay for registering them.
type NopRecorder struct{}

func (NopRecorder) StepCompleted(string, time.Duration)                        {}
func (NopRecorder) ToolInvoked(string, bool, int, time.Duration)               {}
func (NopRecorder) LLMRequest(string, string, string, time.Duration, int, int) {}
func (NopRecorder) PlanGenerated(string, time.Duration, int)                   {}
func (NopRecorder) CompressionEvent(string)                                    {}
func (NopRecorder) SessionStarted()                                            {}
func (NopRecorder) SessionEnded(time.Duration)                                 {}
