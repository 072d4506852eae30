package executor

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// Control tools are the two non-domain actions spec §4.6 lists alongside
// tool_call/complete: ask_user and replan. They are advertised to the LLM
// like any other tool so the model can choose them directly, but think()
// intercepts a call to either by name and turns it into the corresponding
// ActionKind instead of dispatching through the tool envelope — they never
// reach Registry.Get or agent.Invoke.
const (
	askUserToolName = "ask_user"
	replanToolName  = "replan"
)

// askUserTool lets the LLM suspend the run pending a reply from the caller
// (spec §4.6 "AwaitingUser").
type askUserTool struct{}

func (askUserTool) Name() string        { return askUserToolName }
func (askUserTool) Description() string { return "Ask the user a clarifying question and suspend the run until they reply." }
func (askUserTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "The question to ask the user."}
		},
		"required": ["question"]
	}`)
}

func (askUserTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Success: false, Error: "ask_user_not_intercepted"}, nil
}

// replanTool lets the LLM discard the current plan and request a fresh one
// (spec §4.6 "Replan").
type replanTool struct{}

func (replanTool) Name() string        { return replanToolName }
func (replanTool) Description() string { return "Abandon the current plan and request a new one, explaining why." }
func (replanTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"reason": {"type": "string", "description": "Why the current plan no longer fits."}
		},
		"required": ["reason"]
	}`)
}

func (replanTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Success: false, Error: "replan_not_intercepted"}, nil
}

// controlTools are appended to every Thinking-phase tool advertisement,
// outside opts.ToolAllowlist filtering since they are protocol actions, not
// domain tools a caller would want to restrict.
var controlTools = []agent.Tool{askUserTool{}, replanTool{}}
