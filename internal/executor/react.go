// Package executor wires the tool envelope, conversation history, session
// store, and planner together into the ReAct state machine described by
// spec §4.6: Idle → Planning → Ready → Thinking → Acting → Observing →
// (Ready | AwaitingUser | Done | Failed).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/planner"
	"github.com/haasonsaas/agentcore/internal/sessions"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ExecuteOptions carries the recognized options map from spec §6's
// execute(session_id, user_message, options?) contract.
type ExecuteOptions struct {
	Model               string
	Temperature         float64
	MaxSteps            int
	ToolAllowlist       []string
	UserContext         map[string]any
	ResetOnTerminalPlan bool
}

// DefaultExecuteOptions mirrors the spec's stated default:
// reset_on_terminal_plan = true.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{MaxSteps: 40, ResetOnTerminalPlan: true}
}

func mergeExecuteOptions(base, override ExecuteOptions) ExecuteOptions {
	merged := base
	if override.Model != "" {
		merged.Model = override.Model
	}
	if override.Temperature != 0 {
		merged.Temperature = override.Temperature
	}
	if override.MaxSteps > 0 {
		merged.MaxSteps = override.MaxSteps
	}
	if len(override.ToolAllowlist) > 0 {
		merged.ToolAllowlist = override.ToolAllowlist
	}
	if override.UserContext != nil {
		merged.UserContext = override.UserContext
	}
	merged.ResetOnTerminalPlan = override.ResetOnTerminalPlan
	return merged
}

// Config holds the Executor's shared, process-wide dependencies, all
// explicitly constructed and passed in (spec §5 "no global mutable state
// inside the core").
type Config struct {
	Registry         *agent.ToolRegistry
	Store            sessions.Store
	Locker           sessions.Locker
	Provider         agent.LLMProvider
	SystemPrompt     string
	Envelope         agent.EnvelopeConfig
	History          agent.HistoryConfig
	Guard            agent.ObservationGuard
	MaxAttempts      int
	DefaultOptions   ExecuteOptions
	Logger           *slog.Logger

	// Recorder receives loop-step, tool, plan, and compression metrics.
	// Defaults to a no-op so callers that don't care about metrics never
	// pay for registering them.
	Recorder observability.Recorder

	// Tracer emits spans around plan(), think(), and act() calls. Defaults
	// to a no-op so callers that don't configure an OTLP endpoint never
	// touch otel's global tracer provider.
	Tracer observability.SpanTracer
}

// Executor runs the ReAct loop for many sessions concurrently, serialized
// per-session via Config.Locker (spec §5).
type Executor struct {
	cfg Config

	mu          sync.Mutex
	histories   map[string]*agent.History
	cancelFuncs map[string]context.CancelFunc

	// plans holds the in-memory TodoList per session. The spec treats
	// SessionState (which only carries todolist_id) as the persisted
	// artifact; the TodoList body itself is executor-local working state
	// reconstructed per run. Owned per-Executor instance (spec §5: "no
	// global mutable state inside the core") so two Executors in the same
	// process never share session plan state.
	plans sync.Map // map[string]*models.TodoList
}

// New constructs an Executor. MaxAttempts and DefaultOptions.MaxSteps fall
// back to the spec's stated defaults (3 and 40) when unset.
func New(cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultOptions.MaxSteps <= 0 {
		cfg.DefaultOptions.MaxSteps = 40
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = observability.NopRecorder{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer{}
	}
	return &Executor{
		cfg:         cfg,
		histories:   make(map[string]*agent.History),
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// Execute runs one query against sessionID, returning a channel of events
// the caller must drain to completion or cancel. The channel is closed when
// the call reaches Done, Failed, or AwaitingUser.
func (e *Executor) Execute(ctx context.Context, sessionID, userMessage string, opts ExecuteOptions) (<-chan models.AgentEvent, error) {
	merged := mergeExecuteOptions(e.cfg.DefaultOptions, opts)
	events := make(chan models.AgentEvent, 64)
	sink := agent.NewChanSink(events)
	emitter := agent.NewEventEmitter(sessionID, sink)

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelFuncs[sessionID] = cancel
	e.mu.Unlock()

	if err := e.cfg.Locker.Lock(runCtx, sessionID); err != nil {
		cancel()
		close(events)
		return nil, agent.NewAgentError(agent.KindCancellation, "failed to acquire session lock", err)
	}

	go func() {
		defer cancel()
		defer close(events)
		defer e.cfg.Locker.Unlock(sessionID)
		e.cfg.Recorder.SessionStarted()
		start := time.Now()
		defer func() { e.cfg.Recorder.SessionEnded(time.Since(start)) }()
		e.runQuery(runCtx, sessionID, userMessage, merged, emitter)
	}()

	return events, nil
}

// Answer resumes a session suspended in AwaitingUser with the user's reply.
func (e *Executor) Answer(ctx context.Context, sessionID, text string) (<-chan models.AgentEvent, error) {
	events := make(chan models.AgentEvent, 64)
	sink := agent.NewChanSink(events)
	emitter := agent.NewEventEmitter(sessionID, sink)

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelFuncs[sessionID] = cancel
	e.mu.Unlock()

	if err := e.cfg.Locker.Lock(runCtx, sessionID); err != nil {
		cancel()
		close(events)
		return nil, agent.NewAgentError(agent.KindCancellation, "failed to acquire session lock", err)
	}

	go func() {
		defer cancel()
		defer close(events)
		defer e.cfg.Locker.Unlock(sessionID)
		e.cfg.Recorder.SessionStarted()
		start := time.Now()
		defer func() { e.cfg.Recorder.SessionEnded(time.Since(start)) }()

		state, err := e.cfg.Store.Load(runCtx, sessionID)
		if err != nil {
			emitter.Error(runCtx, agent.NewAgentError(agent.KindStateConsistency, "cannot answer: session state not found", err))
			return
		}
		if state.PendingQuestion == "" {
			emitter.Error(runCtx, agent.NewAgentError(agent.KindValidation, "answer() called but session is not AwaitingUser", agent.ErrNotAwaitingUser))
			return
		}

		history := e.historyFor(sessionID)
		history.Append(models.Message{Role: models.RoleUser, Content: text})

		if state.Answers == nil {
			state.Answers = map[string]string{}
		}
		state.Answers[state.PendingQuestion] = text
		state.PendingQuestion = ""
		state, err = e.cfg.Store.Save(runCtx, state)
		if err != nil {
			emitter.Error(runCtx, wrapf(agent.KindStateConsistency, err, "failed to persist answer"))
			return
		}
		emitter.StateUpdate(runCtx, state.Version, "answer recorded")

		e.loop(runCtx, sessionID, state, history, e.cfg.DefaultOptions, emitter)
	}()

	return events, nil
}

// Cancel cooperatively cancels an in-flight execute/answer call for
// sessionID, if any.
func (e *Executor) Cancel(sessionID string) {
	e.mu.Lock()
	cancel, ok := e.cancelFuncs[sessionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Executor) historyFor(sessionID string) *agent.History {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[sessionID]
	if !ok {
		summarizer := agent.LLMSummarizer{Provider: e.cfg.Provider, Model: e.cfg.DefaultOptions.Model}
		h = agent.NewHistory(e.cfg.SystemPrompt, e.cfg.History, summarizer)
		e.histories[sessionID] = h
	}
	return h
}

// runQuery implements the Idle entry point and the between-query reset rule
// (spec §4.6 "Between-query reset").
func (e *Executor) runQuery(ctx context.Context, sessionID, userMessage string, opts ExecuteOptions, emitter *agent.EventEmitter) {
	history := e.historyFor(sessionID)
	history.Append(models.Message{Role: models.RoleUser, Content: userMessage})

	state, err := e.cfg.Store.Load(ctx, sessionID)
	if err != nil {
		if err != sessions.ErrNotFound {
			emitter.Error(ctx, wrapf(agent.KindStateConsistency, err, "failed to load session state"))
			return
		}
		state = models.NewSessionState(sessionID)
	}

	if state.PendingQuestion != "" {
		// This execute call represents the user answering a pending
		// question inline rather than through Answer(); preserve mission
		// and plan, continue from AwaitingUser.
		if state.Answers == nil {
			state.Answers = map[string]string{}
		}
		state.Answers[state.PendingQuestion] = userMessage
		state.PendingQuestion = ""
		e.loop(ctx, sessionID, state, history, opts, emitter)
		return
	}

	existingTerminal := false
	if state.TodoListID != "" {
		if planVal, ok := e.plans.Load(sessionID); ok {
			existingTerminal = planVal.(*models.TodoList).Terminal()
		} else {
			existingTerminal = true // no in-memory plan survives across processes; treat as closed
		}
	}
	if opts.ResetOnTerminalPlan && existingTerminal {
		if compressed, fellBack, cerr := history.MaybeCompress(ctx); cerr != nil && fellBack {
			e.cfg.Recorder.CompressionEvent("tail_retained")
			emitter.StateUpdate(ctx, state.Version, "history compression failed; fell back to tail retention")
		} else if compressed {
			e.cfg.Recorder.CompressionEvent("summarized")
			emitter.StateUpdate(ctx, state.Version, "history compressed ahead of replanning")
		}
		state.ResetPlan()
		e.plans.Delete(sessionID)
	}

	state.Mission = userMessage

	plan, err := e.plan(ctx, sessionID, state, opts, emitter)
	if err != nil {
		emitter.Error(ctx, err)
		return
	}

	state.TodoListID = plan.ID
	state, err = e.cfg.Store.Save(ctx, state)
	if err != nil {
		emitter.Error(ctx, wrapf(agent.KindStateConsistency, err, "failed to persist plan"))
		return
	}
	emitter.StateUpdate(ctx, state.Version, "plan ready")

	e.runWithPlan(ctx, sessionID, state, plan, history, opts, emitter)
}

func (e *Executor) plan(ctx context.Context, sessionID string, state *models.SessionState, opts ExecuteOptions, emitter *agent.EventEmitter) (*models.TodoList, error) {
	ctx, span := e.cfg.Tracer.Start(ctx, "plan", observability.SpanOptions{
		Kind:       trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{attribute.String("session_id", sessionID)},
	})
	defer span.End()

	p := planner.New(e.cfg.Provider, opts.Model)
	tools := e.cfg.Registry.AsLLMTools(opts.ToolAllowlist)
	start := time.Now()
	result, err := p.Plan(ctx, state.Mission, tools)
	if err != nil {
		e.cfg.Recorder.PlanGenerated("failure", time.Since(start), 0)
		e.cfg.Tracer.RecordError(span, err)
		return nil, err
	}
	e.cfg.Recorder.PlanGenerated("success", time.Since(start), len(result.TodoList.Items))
	e.cfg.Tracer.SetAttributes(span, "plan.item_count", len(result.TodoList.Items))
	for _, q := range result.OpenQuestions {
		emitter.AskUser(ctx, q)
	}
	return result.TodoList, nil
}

func (e *Executor) runWithPlan(ctx context.Context, sessionID string, state *models.SessionState, plan *models.TodoList, history *agent.History, opts ExecuteOptions, emitter *agent.EventEmitter) {
	e.plans.Store(sessionID, plan)
	e.loop(ctx, sessionID, state, history, opts, emitter)
}

// loop is Ready/Thinking/Acting/Observing, iterated until a terminal
// transition or the step budget is exhausted (spec §4.6).
func (e *Executor) loop(ctx context.Context, sessionID string, state *models.SessionState, history *agent.History, opts ExecuteOptions, emitter *agent.EventEmitter) {
	planVal, ok := e.plans.Load(sessionID)
	if !ok {
		emitter.Error(ctx, agent.NewAgentError(agent.KindStateConsistency, "no in-memory plan for session", nil))
		return
	}
	plan := planVal.(*models.TodoList)

	stats := &models.RunStats{}
	start := time.Now()
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 40
	}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			emitter.Error(ctx, agent.NewAgentError(agent.KindCancellation, "execution cancelled", err))
			return
		}

		task, ok := selectEligibleTask(plan)
		if !ok {
			if plan.Terminal() {
				if plan.AnyFailed() {
					emitter.Error(ctx, agent.NewAgentError(agent.KindToolExecution, "plan completed with at least one failed task", nil))
					return
				}
				stats.Steps = step
				stats.WallTime = time.Since(start)
				emitter.Complete(ctx, "mission complete", stats)
				return
			}
			emitter.Error(ctx, agent.NewAgentError(agent.KindStateConsistency, "no eligible task and plan is not terminal", agent.ErrNoEligibleTask))
			return
		}

		if compressed, fellBack, cerr := history.MaybeCompress(ctx); cerr != nil && fellBack {
			stats.Compressions++
			e.cfg.Recorder.CompressionEvent("tail_retained")
			emitter.StateUpdate(ctx, state.Version, "history compression failed; fell back to tail retention")
		} else if compressed {
			stats.Compressions++
			e.cfg.Recorder.CompressionEvent("summarized")
		}

		stepStart := time.Now()
		thought, action, err := e.think(ctx, sessionID, task, history, opts)
		if err != nil {
			emitter.Error(ctx, err)
			return
		}
		emitter.Thought(ctx, task.Position, thought)
		emitter.Action(ctx, *action)

		switch action.Kind {
		case models.ActionComplete:
			task.Status = models.TodoCompleted
			stats.Steps = step + 1
			stats.WallTime = time.Since(start)
			emitter.Complete(ctx, action.Summary, stats)
			return

		case models.ActionAskUser:
			state.PendingQuestion = action.Question
			saved, err := e.cfg.Store.Save(ctx, state)
			if err != nil {
				emitter.Error(ctx, wrapf(agent.KindStateConsistency, err, "failed to persist pending question"))
				return
			}
			emitter.StateUpdate(ctx, saved.Version, "awaiting user")
			emitter.AskUser(ctx, action.Question)
			return

		case models.ActionReplan:
			history.Append(models.Message{Role: models.RoleUser, Content: "[replan requested] " + action.Reason})
			state.ResetPlan()
			newPlan, err := e.plan(ctx, sessionID, state, opts, emitter)
			if err != nil {
				emitter.Error(ctx, err)
				return
			}
			state.TodoListID = newPlan.ID
			e.plans.Store(sessionID, newPlan)
			plan = newPlan
			continue

		case models.ActionToolCall:
			e.act(ctx, sessionID, task, action, history, &stats.ToolCalls, emitter)

		default:
			emitter.Error(ctx, agent.NewAgentError(agent.KindValidation, fmt.Sprintf("unrecognized action kind %q", action.Kind), nil))
			return
		}

		saved, err := e.cfg.Store.Save(ctx, state)
		if err != nil {
			emitter.Error(ctx, wrapf(agent.KindStateConsistency, err, "failed to persist state after step"))
			return
		}
		state = saved
		e.cfg.Recorder.StepCompleted(sessionID, time.Since(stepStart))
		emitter.StateUpdate(ctx, state.Version, "step complete")
	}

	emitter.Error(ctx, agent.NewAgentError(agent.KindBudgetExceeded, "step budget exhausted", agent.ErrMaxStepsExceeded))
}

// selectEligibleTask returns the first Pending task whose dependencies are
// all terminal-successful (Completed or Skipped), matching spec §4.6's
// "Ready: has eligible task" transition.
func selectEligibleTask(plan *models.TodoList) (*models.TodoItem, bool) {
	for i := range plan.Items {
		item := &plan.Items[i]
		if item.Status != models.TodoPending {
			continue
		}
		eligible := true
		for _, dep := range item.Dependencies {
			depItem, ok := plan.ItemAt(dep)
			if !ok || (depItem.Status != models.TodoCompleted && depItem.Status != models.TodoSkipped) {
				eligible = false
				break
			}
		}
		if eligible {
			return item, true
		}
	}
	return nil, false
}

// think performs the Thinking transition: pack history + task into a
// completion request, advertise tools, and parse the LLM's chosen action.
func (e *Executor) think(ctx context.Context, sessionID string, task *models.TodoItem, history *agent.History, opts ExecuteOptions) (string, *models.ActionPayload, error) {
	ctx, span := e.cfg.Tracer.Start(ctx, "think", observability.SpanOptions{
		Kind: trace.SpanKindClient,
		Attributes: []attribute.KeyValue{
			attribute.String("session_id", sessionID),
			attribute.Int("task.position", task.Position),
		},
	})
	defer span.End()

	tools := append(e.cfg.Registry.AsLLMTools(opts.ToolAllowlist), controlTools...)
	req := &agent.CompletionRequest{
		Model:       opts.Model,
		System:      e.cfg.SystemPrompt,
		Messages:    toCompletionMessages(history.Snapshot(-1)),
		Tools:       agent.ToolsToSchemas(tools),
		Temperature: opts.Temperature,
	}
	completion, err := e.cfg.Provider.Complete(ctx, req)
	if err != nil {
		e.cfg.Tracer.RecordError(span, err)
		return "", nil, agent.NewAgentError(agent.KindToolExecution, "thought generation failed", err).WithTask(task.Position, task.Attempts)
	}

	action := &models.ActionPayload{TaskPosition: task.Position}
	if len(completion.ToolCalls) > 0 {
		tc := completion.ToolCalls[0]
		var args map[string]any
		_ = json.Unmarshal(tc.Arguments, &args)

		switch tc.Name {
		case askUserToolName:
			action.Kind = models.ActionAskUser
			action.Question, _ = args["question"].(string)
		case replanToolName:
			action.Kind = models.ActionReplan
			action.Reason, _ = args["reason"].(string)
		default:
			action.Kind = models.ActionToolCall
			action.ToolName = tc.Name
			action.Arguments = args
			task.ChosenTool = tc.Name
			task.ToolInput = args
		}
	} else {
		action.Kind = models.ActionComplete
		action.Summary = completion.Content
	}

	history.Append(models.Message{
		Role:      models.RoleAssistant,
		Content:   completion.Content,
		ToolCalls: completion.ToolCalls,
	})

	e.cfg.Tracer.SetAttributes(span, "action.kind", string(action.Kind))
	return completion.Content, action, nil
}

// act performs Acting→Observing: invoke the chosen tool through the safe
// envelope, bump attempts on failure, and append the Observation to
// history.
func (e *Executor) act(ctx context.Context, sessionID string, task *models.TodoItem, action *models.ActionPayload, history *agent.History, toolCallCount *int, emitter *agent.EventEmitter) {
	*toolCallCount++

	ctx, span := e.cfg.Tracer.Start(ctx, fmt.Sprintf("tool.%s", action.ToolName), observability.SpanOptions{
		Kind: trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{
			attribute.String("session_id", sessionID),
			attribute.String("tool.name", action.ToolName),
		},
	})
	defer span.End()

	tool, ok := e.cfg.Registry.Get(action.ToolName)
	if !ok {
		task.Attempts++
		result := agent.ToolResult{Success: false, Error: "tool_not_found", Detail: action.ToolName}
		e.cfg.Recorder.ToolInvoked(action.ToolName, false, 1, 0)
		e.cfg.Tracer.RecordError(span, agent.ErrToolNotFound)
		e.recordObservation(ctx, task, result, history, emitter)
		if task.Attempts >= e.cfg.MaxAttempts {
			task.Status = models.TodoFailed
		}
		return
	}

	start := time.Now()
	params, _ := json.Marshal(action.Arguments)
	result, attempts, err := agent.Invoke(ctx, tool, params, e.cfg.Envelope)
	task.Attempts += attempts
	if err != nil {
		result = &agent.ToolResult{Success: false, Error: "tool_execution_error", Detail: err.Error()}
		e.cfg.Tracer.RecordError(span, err)
	}
	guarded := e.cfg.Guard.Apply(action.ToolName, *result, nil)
	task.ExecutionResult = &guarded
	e.cfg.Recorder.ToolInvoked(action.ToolName, guarded.Success, attempts, time.Since(start))
	e.cfg.Tracer.SetAttributes(span, "tool.success", guarded.Success, "tool.attempts", attempts)

	if guarded.Success {
		task.Status = models.TodoCompleted
	} else if task.Attempts >= e.cfg.MaxAttempts {
		task.Status = models.TodoFailed
	}

	e.recordObservation(ctx, task, guarded, history, emitter)
}

func (e *Executor) recordObservation(ctx context.Context, task *models.TodoItem, result agent.ToolResult, history *agent.History, emitter *agent.EventEmitter) {
	history.Append(models.Message{
		Role:       models.RoleTool,
		Content:    result.AsContent(),
		ToolName:   task.ChosenTool,
		ToolCallID: task.ChosenTool,
	})
	emitter.Observation(ctx, models.ObservationPayload{
		TaskPosition: task.Position,
		Success:      result.Success,
		Payload:      result.Payload,
		Attempts:     task.Attempts,
	})
}

func toCompletionMessages(msgs []models.Message) []agent.CompletionMessage {
	out := make([]agent.CompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		out = append(out, agent.CompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		})
	}
	return out
}

func wrapf(kind agent.ErrorKind, cause error, format string, args ...any) error {
	return agent.NewAgentError(kind, fmt.Sprintf(format, args...), cause)
}
