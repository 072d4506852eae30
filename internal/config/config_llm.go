package config

import (
	"fmt"
	"strings"
)

// LLMConfig configures the LLM provider port implementations
// (internal/agent/providers).
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// FallbackChain specifies provider IDs to try, in order, if the default
	// provider's completion call fails.
	FallbackChain []string `yaml:"fallback_chain"`

	// Bedrock configures the AWS Bedrock Converse API client.
	Bedrock BedrockConfig `yaml:"bedrock"`
}

// LLMProviderConfig carries one provider's credentials and default model.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
}

// BedrockConfig configures the Bedrock provider's AWS region and default
// context/output sizing used when a model doesn't report its own.
type BedrockConfig struct {
	Region               string `yaml:"region"`
	DefaultContextWindow int    `yaml:"default_context_window"`
	DefaultMaxTokens     int    `yaml:"default_max_tokens"`
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.DefaultContextWindow == 0 {
		cfg.Bedrock.DefaultContextWindow = 32000
	}
	if cfg.Bedrock.DefaultMaxTokens == 0 {
		cfg.Bedrock.DefaultMaxTokens = 4096
	}
}

func validateLLMConfig(cfg *LLMConfig) []string {
	var issues []string

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	if defaultProvider != "" && len(cfg.Providers) > 0 {
		if _, ok := cfg.Providers[defaultProvider]; !ok {
			if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.DefaultProvider))
			}
		}
	}

	for _, id := range cfg.FallbackChain {
		if _, ok := cfg.Providers[id]; !ok {
			issues = append(issues, fmt.Sprintf("llm.fallback_chain references unknown provider %q", id))
		}
	}

	return issues
}
