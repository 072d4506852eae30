// Package config loads and validates the core's runtime configuration: the
// executor's rolling-window/compression/budget tunables (spec §6), LLM
// provider credentials, the optional Postgres DSN for the SQL-backed session
// store, and logging.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration structure for the agent core.
type Config struct {
	Executor ExecutorConfig `yaml:"executor"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ExecutorConfig holds the tunables spec §6 says the core recognizes at
// startup, each overridable by an identically-named environment variable.
type ExecutorConfig struct {
	MaxMessages      int `yaml:"max_messages"`
	SummaryThreshold int `yaml:"summary_threshold"`
	MaxSteps         int `yaml:"max_steps"`
	MaxAttempts      int `yaml:"max_attempts"`
	ToolTimeoutSec   int `yaml:"tool_timeout_sec"`
	LLMTimeoutSec    int `yaml:"llm_timeout_sec"`
}

// ToolTimeout returns the configured tool timeout as a duration.
func (c ExecutorConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSec) * time.Second
}

// LLMTimeout returns the configured LLM completion timeout as a duration.
func (c ExecutorConfig) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// DatabaseConfig configures the optional Postgres-backed session state store.
// When URL is empty, callers fall back to the in-memory store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig controls the structured logger (internal/observability).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls the OpenTelemetry tracer the executor starts spans
// through (internal/observability.Tracer). When Endpoint is empty, spans are
// still created in-process but never exported.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// Load reads, expands, parses, defaults, and validates a configuration file.
// The file may be YAML or JSON5 (by extension) and may use $include
// directives (see loader.go) to pull in shared fragments.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyExecutorDefaults(&cfg.Executor)
	applyDatabaseDefaults(&cfg.Database)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Tracing)
}

func applyExecutorDefaults(cfg *ExecutorConfig) {
	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = 50
	}
	if cfg.SummaryThreshold == 0 {
		cfg.SummaryThreshold = 40
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 40
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ToolTimeoutSec == 0 {
		cfg.ToolTimeoutSec = 60
	}
	if cfg.LLMTimeoutSec == 0 {
		cfg.LLMTimeoutSec = 60
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyTracingDefaults(cfg *TracingConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentcore"
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}
}

// applyEnvOverrides honors the exact environment variable names spec §6
// lists for the executor's tunables, plus DATABASE_URL for the store.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	overrideInt(&cfg.Executor.MaxMessages, "MAX_MESSAGES")
	overrideInt(&cfg.Executor.SummaryThreshold, "SUMMARY_THRESHOLD")
	overrideInt(&cfg.Executor.MaxSteps, "MAX_STEPS")
	overrideInt(&cfg.Executor.MaxAttempts, "MAX_ATTEMPTS")
	overrideInt(&cfg.Executor.ToolTimeoutSec, "TOOL_TIMEOUT_SEC")
	overrideInt(&cfg.Executor.LLMTimeoutSec, "LLM_TIMEOUT_SEC")

	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
}

func overrideInt(dst *int, envVar string) {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*dst = parsed
	}
}

// ConfigValidationError aggregates every validation issue found in a config
// so callers see the full list in one error rather than fixing it field by
// field.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Executor.MaxMessages <= 0 {
		issues = append(issues, "executor.max_messages must be > 0")
	}
	if cfg.Executor.SummaryThreshold <= 0 {
		issues = append(issues, "executor.summary_threshold must be > 0")
	}
	if cfg.Executor.SummaryThreshold >= cfg.Executor.MaxMessages {
		issues = append(issues, "executor.summary_threshold must be less than executor.max_messages")
	}
	if cfg.Executor.MaxSteps <= 0 {
		issues = append(issues, "executor.max_steps must be > 0")
	}
	if cfg.Executor.MaxAttempts <= 0 {
		issues = append(issues, "executor.max_attempts must be > 0")
	}
	if cfg.Executor.ToolTimeoutSec <= 0 {
		issues = append(issues, "executor.tool_timeout_sec must be > 0")
	}
	if cfg.Executor.LLMTimeoutSec <= 0 {
		issues = append(issues, "executor.llm_timeout_sec must be > 0")
	}

	if cfg.Database.MaxConnections < 0 {
		issues = append(issues, "database.max_connections must be >= 0")
	}

	if llmIssues := validateLLMConfig(&cfg.LLM); len(llmIssues) > 0 {
		issues = append(issues, llmIssues...)
	}

	if !validLogLevel(cfg.Logging.Level) {
		issues = append(issues, "logging.level must be \"debug\", \"info\", \"warn\", or \"error\"")
	}
	if !validLogFormat(cfg.Logging.Format) {
		issues = append(issues, "logging.format must be \"json\" or \"text\"")
	}

	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validLogFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "text":
		return true
	default:
		return false
	}
}
