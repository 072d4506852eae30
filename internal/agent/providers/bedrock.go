package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// BedrockConfig configures the AWS Bedrock-backed provider.
type BedrockConfig struct {
	Region       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// BedrockProvider implements agent.LLMProvider against Bedrock's Converse
// API, which presents a single request/response shape uniformly across
// model families — a natural fit for Complete's non-streaming contract.
type BedrockProvider struct {
	BaseProvider
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider loads the default AWS config chain and constructs a
// Bedrock runtime client.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &BedrockProvider{
		BaseProvider: NewBaseProvider("bedrock", cfg.MaxRetries, cfg.RetryDelay),
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
	}, nil
}

// Name returns the provider identifier.
func (p *BedrockProvider) Name() string { return "bedrock" }

// Complete sends one Converse request and returns the assembled result.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: convertMessagesToBedrock(req.Messages),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		inference := &types.InferenceConfiguration{}
		if req.MaxTokens > 0 {
			mt := int32(req.MaxTokens)
			inference.MaxTokens = &mt
		}
		if req.Temperature > 0 {
			temp := float32(req.Temperature)
			inference.Temperature = &temp
		}
		input.InferenceConfig = inference
	}
	if len(req.Tools) > 0 {
		toolConfig, err := convertToolsToBedrock(req.Tools)
		if err != nil {
			return nil, agent.NewAgentError(agent.KindValidation, "convert tools for bedrock", err)
		}
		input.ToolConfig = toolConfig
	}

	var out *bedrockruntime.ConverseOutput
	err := p.Retry(ctx, IsRetryable, func() error {
		var callErr error
		out, callErr = p.client.Converse(ctx, input)
		return callErr
	})
	if err != nil {
		return nil, agent.NewAgentError(agent.KindToolExecution, "bedrock completion failed", err)
	}

	return assembleBedrockCompletion(out), nil
}

func convertMessagesToBedrock(msgs []agent.CompletionMessage) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		case models.RoleAssistant:
			var blocks []types.ContentBlock
			if m.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document(input),
					},
				})
			}
			out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		case models.RoleTool:
			out = append(out, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
					},
				}},
			})
		}
	}
	return out
}

func convertToolsToBedrock(tools []agent.ToolSchema) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %q: invalid parameters schema: %w", t.Name, err)
			}
		}
		desc := t.Description
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: &desc,
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}

func assembleBedrockCompletion(out *bedrockruntime.ConverseOutput) *agent.Completion {
	result := &agent.Completion{}
	if out == nil {
		return result
	}
	if usage := out.Usage; usage != nil {
		result.Usage = agent.Usage{
			InputTokens:  int(derefInt32(usage.InputTokens)),
			OutputTokens: int(derefInt32(usage.OutputTokens)),
		}
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return result
	}
	for _, block := range msgOutput.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			result.Content += variant.Value
		case *types.ContentBlockMemberToolUse:
			args, _ := json.Marshal(variant.Value.Input)
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        aws.ToString(variant.Value.ToolUseId),
				Name:      aws.ToString(variant.Value.Name),
				Arguments: json.RawMessage(args),
			})
		}
	}
	return result
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

// document converts a plain map into the smithy document type Bedrock's
// tool-use blocks expect, using the SDK's lazy JSON-backed document.
func document(v map[string]any) types.Document {
	if v == nil {
		v = map[string]any{}
	}
	return smithyDocument{value: v}
}

// smithyDocument is a minimal types.Document implementation backed by a
// plain Go value, avoiding a dependency on the internal smithy-json package
// the generated SDK document type normally requires.
type smithyDocument struct {
	value any
}

func (d smithyDocument) MarshalSmithyDocument() ([]byte, error) {
	return json.Marshal(d.value)
}

func (d smithyDocument) UnmarshalSmithyDocument(v any) error {
	b, err := json.Marshal(d.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
