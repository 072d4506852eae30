package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TodoStatus is the lifecycle state of a single planned task.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
	TodoSkipped    TodoStatus = "skipped"
)

// Terminal reports whether the status is a terminal one for dependency
// resolution purposes (spec §4.6, task selection: "dependencies all
// Completed or Skipped").
func (s TodoStatus) Terminal() bool {
	switch s {
	case TodoCompleted, TodoFailed, TodoSkipped:
		return true
	default:
		return false
	}
}

// TodoItem is one planned task within a TodoList (spec §3).
type TodoItem struct {
	Position           int            `json:"position"`
	Description        string         `json:"description"`
	AcceptanceCriteria []string       `json:"acceptance_criteria"`
	Dependencies       []int          `json:"dependencies"`
	Status             TodoStatus     `json:"status"`
	ChosenTool         string         `json:"chosen_tool,omitempty"`
	ToolInput          map[string]any `json:"tool_input,omitempty"`
	ExecutionResult    *ToolResult    `json:"execution_result,omitempty"`
	Attempts           int            `json:"attempts"`
}

// TodoList is the directed acyclic plan produced by the planner (spec §3).
type TodoList struct {
	ID            string     `json:"id"`
	Mission       string     `json:"mission"`
	Items         []TodoItem `json:"items"`
	OpenQuestions []string   `json:"open_questions,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewTodoListID generates a stable opaque id for a new TodoList.
func NewTodoListID() string {
	return uuid.NewString()
}

// ItemAt returns the item at the given position, or false if out of range.
// Positions are dense [0,N) by invariant, so this is a direct index.
func (t *TodoList) ItemAt(position int) (*TodoItem, bool) {
	if position < 0 || position >= len(t.Items) {
		return nil, false
	}
	return &t.Items[position], true
}

// Terminal reports whether every item in the list has reached a terminal
// status, meaning the plan as a whole is done (successfully or not).
func (t *TodoList) Terminal() bool {
	for _, item := range t.Items {
		if !item.Status.Terminal() {
			return false
		}
	}
	return true
}

// AnyFailed reports whether at least one item ended Failed.
func (t *TodoList) AnyFailed() bool {
	for _, item := range t.Items {
		if item.Status == TodoFailed {
			return true
		}
	}
	return false
}

// Clone deep-copies the TodoList so callers can safely mutate the result
// without aliasing the version held under the session lock.
func (t *TodoList) Clone() *TodoList {
	if t == nil {
		return nil
	}
	out := *t
	out.Items = make([]TodoItem, len(t.Items))
	for i, item := range t.Items {
		out.Items[i] = item.clone()
	}
	if t.OpenQuestions != nil {
		out.OpenQuestions = append([]string(nil), t.OpenQuestions...)
	}
	return &out
}

func (item TodoItem) clone() TodoItem {
	out := item
	if item.AcceptanceCriteria != nil {
		out.AcceptanceCriteria = append([]string(nil), item.AcceptanceCriteria...)
	}
	if item.Dependencies != nil {
		out.Dependencies = append([]int(nil), item.Dependencies...)
	}
	if item.ToolInput != nil {
		b, err := json.Marshal(item.ToolInput)
		if err == nil {
			var cloned map[string]any
			if json.Unmarshal(b, &cloned) == nil {
				out.ToolInput = cloned
			}
		}
	}
	if item.ExecutionResult != nil {
		res := *item.ExecutionResult
		out.ExecutionResult = &res
	}
	return out
}
