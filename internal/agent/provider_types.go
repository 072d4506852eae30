package agent

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ToolResult is the structured outcome of a tool invocation. Aliased to
// pkg/models.ToolResult so both the planner/history layer and the tool
// envelope speak the same `{success, payload}` shape (spec §4.1 step 4,
// §8 "every returned Observation has a success field").
type ToolResult = models.ToolResult

// LLMProvider is the narrow completion contract the core consumes (spec
// §4.2), trimmed from the teacher's streaming-chunk LLMProvider interface
// down to a single non-streaming Complete call: the core's seven event
// kinds (§4.7) do not include a token-delta stream, so there is nothing for
// a chunk channel to feed here even though the concrete provider
// implementations underneath still stream internally to assemble one
// Completion.
//
// Implementations must be safe to call concurrently across sessions; the
// executor is responsible for serializing calls within one session via the
// session lock (spec §4.2, §5).
type LLMProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
	Name() string
}

// CompletionRequest contains all parameters for a single completion call.
// Two distinct call sites use this: planning (response_format requests a
// strict JSON document) and thought generation (tools attached, tool_calls
// may come back).
type CompletionRequest struct {
	Model          string               `json:"model"`
	System         string               `json:"system,omitempty"`
	Messages       []CompletionMessage  `json:"messages"`
	Tools          []ToolSchema         `json:"tools,omitempty"`
	ResponseFormat string               `json:"response_format,omitempty"` // "", "json"
	Temperature    float64              `json:"temperature,omitempty"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
}

// CompletionMessage represents a single message in a conversation, the
// provider-facing analogue of models.Message.
type CompletionMessage struct {
	Role        models.Role       `json:"role"`
	Content     string            `json:"content,omitempty"`
	ToolCallID  string            `json:"tool_call_id,omitempty"`
	ToolCalls   []models.ToolCall `json:"tool_calls,omitempty"`
}

// ToolSchema is the wire-level description of a tool a provider may call,
// derived from a registered Tool's Name/Description/ParametersSchema.
type ToolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  []byte `json:"parameters"`
}

// Completion is the provider's response to one CompletionRequest.
type Completion struct {
	Content   string            `json:"content"`
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage             `json:"usage"`
}

// Usage reports token accounting for a single completion call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolsToSchemas converts registered tools into the wire schema a provider
// expects, used by both the planner's prompt composition and the
// executor's Thinking transition.
func ToolsToSchemas(tools []Tool) []ToolSchema {
	out := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParametersSchema(),
		})
	}
	return out
}
