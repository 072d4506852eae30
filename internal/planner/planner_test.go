package planner

import (
	"context"
	"testing"

	"github.com/haasonsaas/agentcore/internal/agent"
)

type fakeProvider struct {
	responses []string
	calls     int
}

func (f *fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &agent.Completion{Content: f.responses[idx]}, nil
}

func TestPlanner_Plan_Success(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{
		"items": [
			{"position": 0, "description": "gather logs", "dependencies": []},
			{"position": 1, "description": "analyze logs", "dependencies": [0], "chosen_tool": "log_search"}
		],
		"open_questions": ["should we page on-call?"]
	}`}}

	p := New(provider, "test-model")
	result, err := p.Plan(context.Background(), "investigate the outage", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(result.TodoList.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.TodoList.Items))
	}
	if result.TodoList.Items[1].Dependencies[0] != 0 {
		t.Fatalf("dependency not preserved after normalization")
	}
	if len(result.OpenQuestions) != 1 {
		t.Fatalf("open questions = %d, want 1", len(result.OpenQuestions))
	}
	for _, item := range result.TodoList.Items {
		if item.Status != "pending" {
			t.Fatalf("status = %q, want pending", item.Status)
		}
	}
}

func TestPlanner_Plan_RetriesOnParseFailure(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"not json at all",
		`{"items": [{"position": 0, "description": "retry worked"}]}`,
	}}

	p := New(provider, "test-model")
	result, err := p.Plan(context.Background(), "mission", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("calls = %d, want 2", provider.calls)
	}
	if result.TodoList.Items[0].Description != "retry worked" {
		t.Fatalf("unexpected plan: %+v", result.TodoList)
	}
}

func TestPlanner_Plan_FailsAfterExhaustingRetries(t *testing.T) {
	provider := &fakeProvider{responses: []string{"garbage", "still garbage", "nope"}}
	p := New(provider, "test-model")
	if _, err := p.Plan(context.Background(), "mission", nil); err == nil {
		t.Fatalf("expected PlanGenerationError after exhausting retries")
	}
	if provider.calls != maxParseRetries+1 {
		t.Fatalf("calls = %d, want %d", provider.calls, maxParseRetries+1)
	}
}

func TestPlanner_Plan_RejectsCycle(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{
		"items": [
			{"position": 0, "description": "a", "dependencies": [1]},
			{"position": 1, "description": "b", "dependencies": [0]}
		]
	}`}}
	p := New(provider, "test-model")
	if _, err := p.Plan(context.Background(), "mission", nil); err == nil {
		t.Fatalf("expected PlanValidationError for dependency cycle")
	}
}

func TestPlanner_Plan_RejectsSelfLoop(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{
		"items": [{"position": 0, "description": "a", "dependencies": [0]}]
	}`}}
	p := New(provider, "test-model")
	if _, err := p.Plan(context.Background(), "mission", nil); err == nil {
		t.Fatalf("expected PlanValidationError for self-loop")
	}
}
