package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
executor:
  max_messages: 50
  extra_unknown_field: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Executor.MaxMessages != 50 {
		t.Fatalf("MaxMessages = %d, want 50", cfg.Executor.MaxMessages)
	}
	if cfg.Executor.SummaryThreshold != 40 {
		t.Fatalf("SummaryThreshold = %d, want 40", cfg.Executor.SummaryThreshold)
	}
	if cfg.Executor.MaxSteps != 40 {
		t.Fatalf("MaxSteps = %d, want 40", cfg.Executor.MaxSteps)
	}
	if cfg.Executor.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.ToolTimeout().Seconds() != 60 {
		t.Fatalf("ToolTimeout = %v, want 60s", cfg.Executor.ToolTimeout())
	}
	if cfg.Executor.LLMTimeout().Seconds() != 60 {
		t.Fatalf("LLMTimeout = %v, want 60s", cfg.Executor.LLMTimeout())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadValidatesSummaryThresholdBelowMaxMessages(t *testing.T) {
	path := writeConfig(t, `
executor:
  max_messages: 10
  summary_threshold: 10
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "summary_threshold must be less than") {
		t.Fatalf("expected summary_threshold error, got %v", err)
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesFallbackChain(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  fallback_chain: ["google"]
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "fallback_chain") {
		t.Fatalf("expected fallback_chain error, got %v", err)
	}
}

func TestLoadValidatesLoggingLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: noisy
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging.level error, got %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("MAX_MESSAGES", "100")
	t.Setenv("MAX_STEPS", "20")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:5432/agentcore?sslmode=disable")

	path := writeConfig(t, `
executor:
  max_messages: 50
  max_steps: 40
database:
  url: postgres://default@localhost:5432/agentcore?sslmode=disable
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Executor.MaxMessages != 100 {
		t.Fatalf("expected MaxMessages override, got %d", cfg.Executor.MaxMessages)
	}
	if cfg.Executor.MaxSteps != 20 {
		t.Fatalf("expected MaxSteps override, got %d", cfg.Executor.MaxSteps)
	}
	if cfg.Database.URL != "postgres://override@localhost:5432/agentcore?sslmode=disable" {
		t.Fatalf("expected database url override, got %q", cfg.Database.URL)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte(`
llm:
  default_provider: anthropic
  providers:
    anthropic:
      default_model: claude-sonnet
`), 0o644); err != nil {
		t.Fatalf("WriteFile(base) error = %v", err)
	}

	mainPath := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(mainPath, []byte(`
$include: base.yaml
executor:
  max_steps: 10
`), 0o644); err != nil {
		t.Fatalf("WriteFile(main) error = %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Providers["anthropic"].DefaultModel != "claude-sonnet" {
		t.Fatalf("expected included provider config, got %+v", cfg.LLM.Providers)
	}
	if cfg.Executor.MaxSteps != 10 {
		t.Fatalf("expected main file's max_steps to win, got %d", cfg.Executor.MaxSteps)
	}
}
