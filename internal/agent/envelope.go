package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// EnvelopeConfig tunes the safe invocation envelope wrapping every tool
// Execute call (spec §4.1).
type EnvelopeConfig struct {
	// Timeout bounds a single Execute call. Default 60s.
	Timeout time.Duration
	// RetryBase is the first backoff delay. Default 2s.
	RetryBase time.Duration
	// RetryFactor multiplies the delay after each retryable failure.
	// Default 2.
	RetryFactor float64
	// MaxAttempts caps the total number of Execute attempts (the first try
	// plus retries). Default 3.
	MaxAttempts int
}

// DefaultEnvelopeConfig returns the spec's stated defaults.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{
		Timeout:     60 * time.Second,
		RetryBase:   2 * time.Second,
		RetryFactor: 2,
		MaxAttempts: 3,
	}
}

func (c EnvelopeConfig) normalized() EnvelopeConfig {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.RetryFactor <= 0 {
		c.RetryFactor = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Invoke runs the safe invocation envelope around tool.Execute: validate,
// timeout, retry-with-backoff, shape-enforce (spec §4.1). It never panics
// out to the caller — a tool panic is recovered and reported as an
// unsuccessful ToolResult.
func Invoke(ctx context.Context, tool Tool, params json.RawMessage, cfg EnvelopeConfig) (*ToolResult, int, error) {
	cfg = cfg.normalized()

	if err := validateToolParams(tool.ParametersSchema(), params); err != nil {
		return nil, 0, err
	}

	var (
		result   *ToolResult
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		if err := ctx.Err(); err != nil {
			return nil, attempts, NewAgentError(KindCancellation, "context cancelled before tool invocation", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		result, lastErr = invokeOnce(callCtx, tool, params)
		cancel()

		if lastErr == nil {
			return enforceShape(result), attempts, nil
		}

		if errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, attempts, NewAgentError(KindTimeout, "tool execution exceeded timeout", lastErr).WithTask(0, attempts)
		}

		errType := classifyToolError(lastErr)
		if !errType.IsRetryable() || attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg.RetryBase, cfg.RetryFactor, attempt)
		select {
		case <-ctx.Done():
			return nil, attempts, NewAgentError(KindCancellation, "context cancelled during retry backoff", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, attempts, wrapf(KindToolExecution, lastErr, "tool %q failed after %d attempt(s)", tool.Name(), attempts)
}

// invokeOnce calls tool.Execute once, recovering a panic into an error so a
// misbehaving tool cannot take down the executor (spec §6 "tools MUST honor
// cancellation or be side-effect-idempotent" implies the envelope, not the
// tool, is the trust boundary).
func invokeOnce(ctx context.Context, tool Tool, params json.RawMessage) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapf(KindToolExecution, nil, "tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, params)
}

// enforceShape coerces a tool's return value to the required
// `{success, ...payload}` shape, per spec §4.1 step 4.
func enforceShape(result *ToolResult) *ToolResult {
	if result == nil {
		return &ToolResult{Success: false, Error: "tool_contract_violation", Detail: "tool returned a nil result"}
	}
	return result
}

func backoffDelay(base time.Duration, factor float64, attempt int) time.Duration {
	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= factor
	}
	return time.Duration(delay)
}
