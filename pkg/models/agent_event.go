package models

import "time"

// AgentEvent is the single discriminated event type the executor emits for
// every user-visible state-machine transition (spec §3 "AgentEvent", §4.7).
//
// Design carried over from the teacher's event model: a monotonic Sequence
// for cross-goroutine ordering, a Version for forward compatibility, and
// exactly one non-nil payload per Type.
type AgentEvent struct {
	Version int `json:"version"`

	Type AgentEventType `json:"type"`

	Time time.Time `json:"time"`

	// Sequence is monotonic within a session for ordering guarantees
	// (spec §4.7 "events for a single session are totally ordered").
	Sequence uint64 `json:"seq"`

	SessionID string `json:"session_id"`

	// Exactly one of the following is non-nil for a given Type.
	Thought     *ThoughtPayload     `json:"thought,omitempty"`
	Action      *ActionPayload      `json:"action,omitempty"`
	Observation *ObservationPayload `json:"observation,omitempty"`
	StateUpdate *StateUpdatePayload `json:"state_update,omitempty"`
	AskUser     *AskUserPayload     `json:"ask_user,omitempty"`
	Complete    *CompletePayload    `json:"complete,omitempty"`
	Error       *ErrorPayload       `json:"error,omitempty"`
}

// AgentEventType identifies which of the seven kinds an AgentEvent carries.
type AgentEventType string

const (
	EventThought     AgentEventType = "thought"
	EventAction      AgentEventType = "action"
	EventObservation AgentEventType = "observation"
	EventStateUpdate AgentEventType = "state_update"
	EventAskUser     AgentEventType = "ask_user"
	EventComplete    AgentEventType = "complete"
	EventError       AgentEventType = "error"
)

// ActionKind discriminates the four action shapes the LLM may choose
// (spec §4.6 "Action kinds").
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionAskUser  ActionKind = "ask_user"
	ActionReplan   ActionKind = "replan"
	ActionComplete ActionKind = "complete"
)

// ThoughtPayload carries the LLM's reasoning text for the current task.
type ThoughtPayload struct {
	TaskPosition int    `json:"task_position"`
	Content      string `json:"content"`
}

// ActionPayload describes the action the LLM chose to take.
type ActionPayload struct {
	TaskPosition int            `json:"task_position"`
	Kind         ActionKind     `json:"kind"`
	ToolName     string         `json:"tool_name,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	Question     string         `json:"question,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Summary      string         `json:"summary,omitempty"`
}

// ObservationPayload carries the outcome of dispatching an action.
type ObservationPayload struct {
	TaskPosition int            `json:"task_position"`
	Success      bool           `json:"success"`
	Payload      map[string]any `json:"payload,omitempty"`
	Attempts     int            `json:"attempts"`
}

// StateUpdatePayload announces a persisted state change.
type StateUpdatePayload struct {
	Version int    `json:"version"`
	Summary string `json:"summary"`
}

// AskUserPayload carries the question the executor is suspending on.
type AskUserPayload struct {
	Question string `json:"question"`
}

// CompletePayload carries the final summary of a successful execute call.
type CompletePayload struct {
	Summary string    `json:"summary"`
	Stats   *RunStats `json:"stats,omitempty"`
}

// ErrorPayload standardizes terminal and recoverable errors alike.
type ErrorPayload struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// RunStats aggregates one execute call's activity for the final event,
// grounded on the teacher's StatsCollector output shape.
type RunStats struct {
	Steps          int           `json:"steps"`
	ToolCalls      int           `json:"tool_calls"`
	Compressions   int           `json:"compressions"`
	WallTime       time.Duration `json:"wall_time"`
	InputTokens    int           `json:"input_tokens,omitempty"`
	OutputTokens   int           `json:"output_tokens,omitempty"`
}
