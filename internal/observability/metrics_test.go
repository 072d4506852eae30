package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder_ToolInvoked(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ToolInvoked("echo", true, 1, 50*time.Millisecond)
	rec.ToolInvoked("echo", false, 3, 500*time.Millisecond)

	if count := testutil.CollectAndCount(rec.toolCounter); count != 2 {
		t.Fatalf("toolCounter label combinations = %d, want 2", count)
	}
}

func TestPrometheusRecorder_LLMRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.LLMRequest("anthropic", "claude-test", "success", 200*time.Millisecond, 120, 40)

	expected := `
		# HELP agentcore_llm_tokens_total Tokens consumed by provider, model, and kind (prompt|completion).
		# TYPE agentcore_llm_tokens_total counter
		agentcore_llm_tokens_total{kind="completion",model="claude-test",provider="anthropic"} 40
		agentcore_llm_tokens_total{kind="prompt",model="claude-test",provider="anthropic"} 120
	`
	if err := testutil.CollectAndCompare(rec.llmTokens, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected llmTokens value: %v", err)
	}
}

func TestPrometheusRecorder_PlanGenerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.PlanGenerated("success", time.Second, 3)
	rec.PlanGenerated("failure", 2*time.Second, 0)

	if count := testutil.CollectAndCount(rec.planCounter); count != 2 {
		t.Fatalf("planCounter label combinations = %d, want 2", count)
	}
	if count := testutil.CollectAndCount(rec.planItems); count != 1 {
		t.Fatalf("planItems histogram count = %d, want 1", count)
	}
}

func TestPrometheusRecorder_SessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.SessionStarted()
	rec.SessionStarted()
	rec.SessionEnded(time.Minute)

	if value := testutil.ToFloat64(rec.activeSessions); value != 1 {
		t.Fatalf("activeSessions = %v, want 1", value)
	}
}

func TestPrometheusRecorder_CompressionEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.CompressionEvent("summarized")
	rec.CompressionEvent("tail_retained")

	if count := testutil.CollectAndCount(rec.compressionCounter); count != 2 {
		t.Fatalf("compressionCounter label combinations = %d, want 2", count)
	}
}

func TestNopRecorder_DoesNotPanic(t *testing.T) {
	var rec Recorder = NopRecorder{}
	rec.StepCompleted("sess-1", time.Second)
	rec.ToolInvoked("echo", true, 1, time.Second)
	rec.LLMRequest("anthropic", "model", "success", time.Second, 1, 1)
	rec.PlanGenerated("success", time.Second, 1)
	rec.CompressionEvent("summarized")
	rec.SessionStarted()
	rec.SessionEnded(time.Second)
}
