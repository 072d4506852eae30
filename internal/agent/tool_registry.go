package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/haasonsaas/agentcore/internal/tools/policy"
)

// Tool is the capability-set contract every tool must satisfy (spec §4.1):
// describe (Name/Description/ParametersSchema) and execute.
type Tool interface {
	Name() string
	Description() string
	// ParametersSchema returns a JSON-Schema document describing accepted
	// input, used both by the registry's validation envelope and by
	// AsLLMTools when advertising tools to a provider.
	ParametersSchema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolRegistry is a name→Tool map, read-only after construction completes
// (spec §5 "the tool registry: shared, read-only after construction").
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a new empty tool registry ready for registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry by name. Per spec §4.1 "Duplicate
// registration fails with ConfigError" — unlike the teacher's silent
// overwrite, this returns an error rather than clobbering the existing
// entry.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return NewAgentError(KindConfig, "cannot register a nil tool", nil)
	}
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return NewAgentError(KindConfig, "tool name must not be empty", nil)
	}
	if len(name) > MaxToolNameLength {
		return NewAgentError(KindConfig, fmt.Sprintf("tool name exceeds %d characters", MaxToolNameLength), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return NewAgentError(KindConfig, fmt.Sprintf("tool %q already registered", name), ErrDuplicateTool)
	}
	r.tools[name] = tool
	return nil
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tool parameter limits to prevent resource exhaustion, kept verbatim from
// the teacher's tool_registry.go.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// AsLLMTools returns all registered tools, filtered by allowlist if one is
// set (spec §6 "options.tool_allowlist").
func (r *ToolRegistry) AsLLMTools(allowlist []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for name, t := range r.tools {
		if len(allowlist) > 0 && !matchesToolPatterns(allowlist, name, nil) {
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

// Names returns the sorted set of registered tool names, primarily for
// composing planner prompts deterministically.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

func normalizeToolName(name string, resolver *policy.Resolver) string {
	if resolver == nil {
		return policy.NormalizeTool(name)
	}
	return resolver.CanonicalName(name)
}

// matchesToolPatterns reports whether toolName matches any of patterns,
// used to implement ExecuteOptions.ToolAllowlist. Grounded on the teacher's
// tool_registry.go pattern of the same name.
func matchesToolPatterns(patterns []string, toolName string, resolver *policy.Resolver) bool {
	if len(patterns) == 0 {
		return false
	}
	name := normalizeToolName(toolName, resolver)
	for _, pattern := range patterns {
		if matchToolPattern(normalizeToolName(pattern, resolver), name) {
			return true
		}
	}
	return false
}

func matchToolPattern(pattern, toolName string) bool {
	if pattern == "" || toolName == "" {
		return false
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(toolName, prefix)
	}
	return pattern == toolName
}
