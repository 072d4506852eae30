package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers may want to match with errors.Is.
// Grounded on the teacher's sentinel-error block in errors.go, narrowed and
// renamed to the ReAct state machine's own conditions.
var (
	ErrMaxStepsExceeded = errors.New("agent: step budget exhausted")
	ErrMaxAttempts      = errors.New("agent: tool attempts exhausted")
	ErrSessionNotFound  = errors.New("agent: session not found")
	ErrNoEligibleTask   = errors.New("agent: no eligible task and plan not terminal")
	ErrNotAwaitingUser  = errors.New("agent: answer() called on session not in AwaitingUser")
	ErrToolNotFound     = errors.New("agent: tool not found in registry")
	ErrDuplicateTool    = errors.New("agent: tool already registered")
	ErrCancelled        = errors.New("agent: execution cancelled")
)

// ErrorKind names one of the taxonomy entries from spec §7. A string-backed
// type rather than an interface hierarchy, matching the teacher's
// ToolErrorType pattern in this same file.
type ErrorKind string

const (
	KindValidation       ErrorKind = "ValidationError"
	KindToolExecution    ErrorKind = "ToolExecutionError"
	KindTimeout          ErrorKind = "Timeout"
	KindPlanGeneration   ErrorKind = "PlanGenerationError"
	KindPlanValidation   ErrorKind = "PlanValidationError"
	KindCompression      ErrorKind = "CompressionError"
	KindStateConsistency ErrorKind = "StateConsistencyError"
	KindCancellation     ErrorKind = "CancellationError"
	KindBudgetExceeded   ErrorKind = "BudgetExceededError"
	KindConfig           ErrorKind = "ConfigError"
)

// Recoverable reports whether an error of this kind leaves the session
// usable for a subsequent call without caller intervention (spec §7
// propagation policy: "Compression failures are always recovered locally").
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindCompression, KindCancellation:
		return true
	default:
		return false
	}
}

// AgentError is the concrete error type carrying a Kind and wrapping the
// underlying cause for errors.Is/errors.As, mirroring the teacher's
// ToolError builder-method chain (WithType/WithToolCallID/...).
type AgentError struct {
	Kind         ErrorKind
	Message      string
	TaskPosition int
	Attempts     int
	Cause        error
}

func (e *AgentError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(" (")
		b.WriteString(e.Cause.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *AgentError) Unwrap() error { return e.Cause }

// Recoverable mirrors Kind.Recoverable for convenience at call sites that
// only hold the error value.
func (e *AgentError) Recoverable() bool { return e.Kind.Recoverable() }

// NewAgentError builds an AgentError, matching the teacher's NewToolError
// constructor shape.
func NewAgentError(kind ErrorKind, message string, cause error) *AgentError {
	return &AgentError{Kind: kind, Message: message, Cause: cause}
}

// WithTask attaches task-position/attempts context and returns the
// receiver, mirroring the teacher's chained With* builder methods.
func (e *AgentError) WithTask(position, attempts int) *AgentError {
	e.TaskPosition = position
	e.Attempts = attempts
	return e
}

// IsAgentError reports whether err is (or wraps) an *AgentError.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// GetAgentError extracts the *AgentError from err, if any.
func GetAgentError(err error) (*AgentError, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ToolErrorType classifies a raw tool-execution failure for retry purposes,
// per spec §4.1 ("timeouts are non-retryable the moment the deadline
// elapses; ValidationError is non-retryable; network-class errors are
// retryable").
type ToolErrorType string

const (
	ToolErrorValidation ToolErrorType = "validation"
	ToolErrorTimeout    ToolErrorType = "timeout"
	ToolErrorNetwork    ToolErrorType = "network"
	ToolErrorPanic      ToolErrorType = "panic"
	ToolErrorContract   ToolErrorType = "contract_violation"
	ToolErrorUnknown    ToolErrorType = "unknown"
)

// IsRetryable reports whether the envelope should retry a failure of this
// classification.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorNetwork, ToolErrorUnknown:
		return true
	default:
		return false
	}
}

// classifyToolError pattern-matches a raw error into a ToolErrorType.
// Grounded on the teacher's classifyToolError string-matching approach:
// arbitrary external tool implementations carry no structured error
// taxonomy, so the envelope falls back to substring classification the
// same way the teacher does.
func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	var ae *AgentError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindValidation:
			return ToolErrorValidation
		case KindTimeout:
			return ToolErrorTimeout
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "panic"):
		return ToolErrorPanic
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid param"):
		return ToolErrorValidation
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"),
		strings.Contains(msg, "eof"), strings.Contains(msg, "reset by peer"),
		strings.Contains(msg, "temporarily unavailable"):
		return ToolErrorNetwork
	default:
		return ToolErrorUnknown
	}
}

// wrapf is a small helper mirroring the teacher's fmt.Errorf("...: %w", ...)
// idiom used throughout its errors.go and loop.go.
func wrapf(kind ErrorKind, cause error, format string, args ...any) *AgentError {
	return NewAgentError(kind, fmt.Sprintf(format, args...), cause)
}
