package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// GoogleConfig configures the Gemini-backed provider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// GoogleProvider implements agent.LLMProvider against the Gemini API via
// google.golang.org/genai, using GenerateContent's non-streaming call.
type GoogleProvider struct {
	BaseProvider
	client       *genai.Client
	defaultModel string
}

// NewGoogleProvider constructs a client-backed provider for the Gemini
// Developer API.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GoogleProvider{
		BaseProvider: NewBaseProvider("google", cfg.MaxRetries, cfg.RetryDelay),
		client:       client,
		defaultModel: model,
	}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() string { return "google" }

// Complete sends one GenerateContent request and returns the assembled
// result.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := convertMessagesToGoogle(req.Messages)
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tools, err := convertToolsToGoogle(req.Tools)
		if err != nil {
			return nil, agent.NewAgentError(agent.KindValidation, "convert tools for google", err)
		}
		config.Tools = tools
	}

	var resp *genai.GenerateContentResponse
	err := p.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, agent.NewAgentError(agent.KindToolExecution, "google completion failed", err)
	}

	return assembleGoogleCompletion(resp), nil
}

func convertMessagesToGoogle(msgs []agent.CompletionMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		case models.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
		case models.RoleTool:
			var payload map[string]any
			_ = json.Unmarshal([]byte(m.Content), &payload)
			out = append(out, genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromFunctionResponse(m.ToolCallID, payload)},
				genai.RoleUser,
			))
		}
	}
	return out
}

func convertToolsToGoogle(tools []agent.ToolSchema) ([]*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema *genai.Schema
		if len(t.Parameters) > 0 {
			schema = &genai.Schema{}
			if err := json.Unmarshal(t.Parameters, schema); err != nil {
				return nil, fmt.Errorf("tool %q: invalid parameters schema: %w", t.Name, err)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

func assembleGoogleCompletion(resp *genai.GenerateContentResponse) *agent.Completion {
	out := &agent.Completion{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        part.FunctionCall.Name,
				Name:      part.FunctionCall.Name,
				Arguments: json.RawMessage(args),
			})
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = agent.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out
}
