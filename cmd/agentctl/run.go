package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/providers"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/executor"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/sessions"
)

// buildRunCmd creates the "run" command, which reads one mission from
// stdin, drives it through a single Execute call, and writes each emitted
// event to stdout as a JSON line.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one mission against the agent core",
		Long: `Read a mission from stdin, execute it against a freshly constructed
executor, and print each emitted event as a JSON line to stdout.

This command exists for manual smoke-testing. It does not serve traffic,
expose a metrics endpoint, or persist across invocations unless database.url
is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMission(cmd.Context(), configPath, sessionID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to run against (random if unset)")

	return cmd
}

func runMission(ctx context.Context, configPath, sessionID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("construct llm provider: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("construct session store: %w", err)
	}

	recorder := observability.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       tracingEndpoint(cfg),
		SamplingRate:   cfg.Tracing.SamplingRate,
		Attributes:     cfg.Tracing.Attributes,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error(ctx, "tracer shutdown failed", "error", err)
		}
	}()

	exec := executor.New(executor.Config{
		Registry: agent.NewToolRegistry(),
		Store:    store,
		Locker:   sessions.NewLocalLocker(),
		Provider: provider,
		Envelope: agent.DefaultEnvelopeConfig(),
		History: agent.HistoryConfig{
			MaxMessages:      cfg.Executor.MaxMessages,
			SummaryThreshold: cfg.Executor.SummaryThreshold,
			KeepRecentTurns:  5,
		},
		Guard:          agent.DefaultObservationGuard(),
		MaxAttempts:    cfg.Executor.MaxAttempts,
		DefaultOptions: executor.ExecuteOptions{MaxSteps: cfg.Executor.MaxSteps, ResetOnTerminalPlan: true},
		Recorder:       recorder,
		Tracer:         tracer,
	})

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	fmt.Fprintln(os.Stderr, "reading mission from stdin (Ctrl-D to submit)...")
	mission, err := readMission()
	if err != nil {
		return fmt.Errorf("read mission: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events, err := exec.Execute(runCtx, sessionID, mission, executor.ExecuteOptions{})
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for event := range events {
		if err := enc.Encode(event); err != nil {
			logger.Error(runCtx, "failed to encode event", "error", err)
		}
	}

	return nil
}

func readMission() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var mission string
	for scanner.Scan() {
		if mission != "" {
			mission += "\n"
		}
		mission += scanner.Text()
	}
	return mission, scanner.Err()
}

func buildProvider(ctx context.Context, cfg *config.Config) (agent.LLMProvider, error) {
	providerCfg, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("no configuration for default provider %q", cfg.LLM.DefaultProvider)
	}

	switch cfg.LLM.DefaultProvider {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "google":
		return providers.NewGoogleProvider(ctx, providers.GoogleConfig{
			APIKey:       providerCfg.APIKey,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "bedrock":
		return providers.NewBedrockProvider(ctx, providers.BedrockConfig{
			Region:       cfg.LLM.Bedrock.Region,
			DefaultModel: providerCfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unrecognized llm provider %q", cfg.LLM.DefaultProvider)
	}
}

// tracingEndpoint returns the configured OTLP endpoint, or "" when tracing
// is disabled, which makes NewTracer fall back to in-process-only spans.
func tracingEndpoint(cfg *config.Config) string {
	if !cfg.Tracing.Enabled {
		return ""
	}
	return cfg.Tracing.Endpoint
}

func buildStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.Database.URL == "" {
		return sessions.NewMemoryStore(), nil
	}
	return sessions.NewPostgresStoreFromDSN(cfg.Database.URL, sessions.PostgresConfig{
		MaxOpenConns:    cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}
