package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/sessions"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// fakeProvider cycles through a fixed script of completions, one per call.
type fakeProvider struct {
	completions []*agent.Completion
	calls       int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	idx := f.calls
	if idx >= len(f.completions) {
		idx = len(f.completions) - 1
	}
	f.calls++
	return f.completions[idx], nil
}

// echoTool always succeeds, returning its input back as the payload.
type echoTool struct{ name string }

func (t echoTool) Name() string        { return t.name }
func (t echoTool) Description() string { return "echoes its input" }
func (t echoTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{}`)
}
func (t echoTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var payload map[string]any
	_ = json.Unmarshal(params, &payload)
	return &agent.ToolResult{Success: true, Payload: payload}, nil
}

func newTestExecutor(provider *fakeProvider, tools ...agent.Tool) (*Executor, sessions.Store) {
	registry := agent.NewToolRegistry()
	for _, t := range tools {
		_ = registry.Register(t)
	}
	store := sessions.NewMemoryStore()
	cfg := Config{
		Registry:     registry,
		Store:        store,
		Locker:       sessions.NewLocalLocker(),
		Provider:     provider,
		SystemPrompt: "you are a test agent",
		Envelope:     agent.DefaultEnvelopeConfig(),
		History:      agent.DefaultHistoryConfig(),
		Guard:        agent.DefaultObservationGuard(),
	}
	return New(cfg), store
}

func drain(t *testing.T, ch <-chan models.AgentEvent, timeout time.Duration) []models.AgentEvent {
	t.Helper()
	var events []models.AgentEvent
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out draining events, got %d so far", len(events))
		}
	}
}

func planCompletion(t *testing.T) *agent.Completion {
	return &agent.Completion{Content: `{
		"items": [
			{"position": 0, "description": "say hello", "chosen_tool": "echo"}
		]
	}`}
}

func TestExecutor_Execute_SingleToolCallThenComplete(t *testing.T) {
	provider := &fakeProvider{completions: []*agent.Completion{
		planCompletion(t),
		{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"msg":"hi"}`)}}},
		{Content: "done"},
	}}
	exec, _ := newTestExecutor(provider, echoTool{name: "echo"})

	ch, err := exec.Execute(context.Background(), "sess-1", "say hi", ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	events := drain(t, ch, 2*time.Second)

	var sawComplete, sawObservation bool
	for _, e := range events {
		switch e.Type {
		case models.EventComplete:
			sawComplete = true
		case models.EventObservation:
			sawObservation = true
			if !e.Observation.Success {
				t.Fatalf("expected successful observation, got %+v", e.Observation)
			}
		case models.EventError:
			t.Fatalf("unexpected error event: %+v", e.Error)
		}
	}
	if !sawObservation {
		t.Fatalf("expected an observation event, events: %+v", events)
	}
	if !sawComplete {
		t.Fatalf("expected a complete event, events: %+v", events)
	}
}

// TestExecutor_Execute_AskUserSuspendsRun drives the LLM to choose the
// ask_user control tool directly, exercising the real think() path rather
// than pre-seeding SessionState.PendingQuestion.
func TestExecutor_Execute_AskUserSuspendsRun(t *testing.T) {
	provider := &fakeProvider{completions: []*agent.Completion{
		planCompletion(t),
		{ToolCalls: []models.ToolCall{{
			ID:        "call-1",
			Name:      askUserToolName,
			Arguments: json.RawMessage(`{"question":"what environment is affected?"}`),
		}}},
	}}
	exec, store := newTestExecutor(provider, echoTool{name: "echo"})

	ch, err := exec.Execute(context.Background(), "sess-2", "run the migration", ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var sawAskUser bool
	for _, e := range drain(t, ch, 2*time.Second) {
		switch e.Type {
		case models.EventAskUser:
			sawAskUser = true
			if e.AskUser.Question != "what environment is affected?" {
				t.Fatalf("unexpected ask_user question: %+v", e.AskUser)
			}
		case models.EventError:
			t.Fatalf("unexpected error event: %+v", e.Error)
		}
	}
	if !sawAskUser {
		t.Fatalf("expected an ask_user event")
	}

	state, err := store.Load(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.PendingQuestion != "what environment is affected?" {
		t.Fatalf("expected PendingQuestion to be persisted, got %q", state.PendingQuestion)
	}
}

// TestExecutor_Execute_ReplanRequestsNewPlan drives the LLM to choose the
// replan control tool, verifying the loop discards the current plan, asks
// the planner again, and continues with the new one instead of suspending.
func TestExecutor_Execute_ReplanRequestsNewPlan(t *testing.T) {
	provider := &fakeProvider{completions: []*agent.Completion{
		planCompletion(t),
		{ToolCalls: []models.ToolCall{{
			ID:        "call-1",
			Name:      replanToolName,
			Arguments: json.RawMessage(`{"reason":"the plan no longer fits"}`),
		}}},
		planCompletion(t),
		{ToolCalls: []models.ToolCall{{ID: "call-2", Name: "echo", Arguments: json.RawMessage(`{"msg":"hi"}`)}}},
		{Content: "done"},
	}}
	exec, _ := newTestExecutor(provider, echoTool{name: "echo"})

	ch, err := exec.Execute(context.Background(), "sess-3", "say hi", ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var sawComplete bool
	for _, e := range drain(t, ch, 2*time.Second) {
		switch e.Type {
		case models.EventComplete:
			sawComplete = true
		case models.EventError:
			t.Fatalf("unexpected error event: %+v", e.Error)
		}
	}
	if !sawComplete {
		t.Fatalf("expected a complete event after replanning")
	}
}

func TestExecutor_Answer_RejectsWhenNotAwaitingUser(t *testing.T) {
	provider := &fakeProvider{completions: []*agent.Completion{{Content: "noop"}}}
	exec, store := newTestExecutor(provider)

	state := models.NewSessionState("sess-3")
	if _, err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("seed Save: %v", err)
	}

	ch, err := exec.Answer(context.Background(), "sess-3", "an answer")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	events := drain(t, ch, 2*time.Second)
	if len(events) != 1 || events[0].Type != models.EventError {
		t.Fatalf("expected exactly one error event, got %+v", events)
	}
}

func TestExecutor_Execute_ToolNotFoundFailsTaskAfterMaxAttempts(t *testing.T) {
	provider := &fakeProvider{completions: []*agent.Completion{
		{Content: `{"items": [{"position": 0, "description": "call missing tool", "chosen_tool": "ghost"}]}`},
		{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "ghost", Arguments: json.RawMessage(`{}`)}}},
		{ToolCalls: []models.ToolCall{{ID: "call-2", Name: "ghost", Arguments: json.RawMessage(`{}`)}}},
		{ToolCalls: []models.ToolCall{{ID: "call-3", Name: "ghost", Arguments: json.RawMessage(`{}`)}}},
	}}
	exec, _ := newTestExecutor(provider)
	exec.cfg.MaxAttempts = 3

	ch, err := exec.Execute(context.Background(), "sess-4", "do it", ExecuteOptions{MaxSteps: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	events := drain(t, ch, 2*time.Second)

	var sawError bool
	for _, e := range events {
		if e.Type == models.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected plan to fail after exhausting attempts on a missing tool, events: %+v", events)
	}
}

func TestSelectEligibleTask_RespectsDependencies(t *testing.T) {
	plan := &models.TodoList{
		Items: []models.TodoItem{
			{Position: 0, Status: models.TodoPending},
			{Position: 1, Status: models.TodoPending, Dependencies: []int{0}},
		},
	}
	task, ok := selectEligibleTask(plan)
	if !ok || task.Position != 0 {
		t.Fatalf("expected task 0 to be selected first, got %+v ok=%v", task, ok)
	}

	plan.Items[0].Status = models.TodoCompleted
	task, ok = selectEligibleTask(plan)
	if !ok || task.Position != 1 {
		t.Fatalf("expected task 1 eligible once dependency completed, got %+v ok=%v", task, ok)
	}
}

func TestMergeExecuteOptions_OverrideWins(t *testing.T) {
	base := ExecuteOptions{Model: "base-model", MaxSteps: 40, ResetOnTerminalPlan: true}
	override := ExecuteOptions{Model: "override-model", MaxSteps: 0}
	merged := mergeExecuteOptions(base, override)
	if merged.Model != "override-model" {
		t.Fatalf("Model = %q, want override-model", merged.Model)
	}
	if merged.MaxSteps != 40 {
		t.Fatalf("MaxSteps = %d, want base 40 to survive a zero override", merged.MaxSteps)
	}
}
