package agent

import (
	"errors"
	"testing"
)

func TestToolErrorType_IsRetryable(t *testing.T) {
	tests := []struct {
		typ  ToolErrorType
		want bool
	}{
		{ToolErrorNetwork, true},
		{ToolErrorUnknown, true},
		{ToolErrorValidation, false},
		{ToolErrorTimeout, false},
		{ToolErrorPanic, false},
		{ToolErrorContract, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgentError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewAgentError(KindToolExecution, "tool failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}

	var ae *AgentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected errors.As to extract *AgentError")
	}
	if ae.Kind != KindToolExecution {
		t.Fatalf("kind = %v, want %v", ae.Kind, KindToolExecution)
	}
}

func TestAgentError_WithTask(t *testing.T) {
	err := NewAgentError(KindToolExecution, "failed", nil).WithTask(2, 3)
	if err.TaskPosition != 2 || err.Attempts != 3 {
		t.Fatalf("WithTask did not set fields: %+v", err)
	}
}

func TestErrorKind_Recoverable(t *testing.T) {
	if !KindCompression.Recoverable() {
		t.Fatalf("CompressionError should be recoverable per spec §7")
	}
	if KindStateConsistency.Recoverable() {
		t.Fatalf("StateConsistencyError should be fatal for the current call")
	}
	if KindBudgetExceeded.Recoverable() {
		t.Fatalf("BudgetExceededError should be terminal for the current query")
	}
}

func TestClassifyToolError(t *testing.T) {
	tests := []struct {
		err  error
		want ToolErrorType
	}{
		{errors.New("connection refused by peer"), ToolErrorNetwork},
		{errors.New("context deadline exceeded"), ToolErrorTimeout},
		{errors.New("validation failed: missing field"), ToolErrorValidation},
		{errors.New("tool panicked: index out of range"), ToolErrorPanic},
		{errors.New("something unexpected"), ToolErrorUnknown},
	}
	for _, tt := range tests {
		if got := classifyToolError(tt.err); got != tt.want {
			t.Errorf("classifyToolError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestGetAgentError(t *testing.T) {
	plain := errors.New("plain")
	if _, ok := GetAgentError(plain); ok {
		t.Fatalf("plain error should not be an AgentError")
	}

	wrapped := NewAgentError(KindValidation, "bad params", nil)
	got, ok := GetAgentError(wrapped)
	if !ok || got.Kind != KindValidation {
		t.Fatalf("GetAgentError failed to extract kind: %+v ok=%v", got, ok)
	}
}
