package errors_test

import (
	"errors"
	"fmt"
	"testing"

	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
)

func TestStageError_Error(t *testing.T) {
	err := stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeNoAgent, "No agent associated with the channel")

	expected := "NO_AGENT: No agent associated with the channel"
	if got := err.Error(); got != expected {
		t.Errorf("StageError.Error() = %v, want %v", got, expected)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := stageErrors.Hard(stageErrors.StagePersist, stageErrors.CodeEventPersist, "persist event", cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find cause")
	}

	wrapped := fmt.Errorf("pipeline: %w", err)
	se, ok := stageErrors.As(wrapped)
	if !ok || se.Code != stageErrors.CodeEventPersist {
		t.Errorf("As() = %v, %v", se, ok)
	}
}

func TestStageError_Classification(t *testing.T) {
	tests := []struct {
		name   string
		err    *stageErrors.StageError
		hard   bool
		record bool
	}{
		{"recorded", stageErrors.Recorded(stageErrors.StageCorrelate, stageErrors.CodeNoChannel, "x"), false, true},
		{"suppressed with message", stageErrors.Suppressed(stageErrors.StageCorrelate, stageErrors.CodeAgentInactive, "x"), false, true},
		{"suppressed silent", stageErrors.Suppressed(stageErrors.StageCorrelate, stageErrors.CodeAlreadyProcessed, ""), false, false},
		{"hard", stageErrors.Hard(stageErrors.StagePersist, stageErrors.CodeStorage, "x", nil), true, true},
		{"delivery", stageErrors.New(stageErrors.StageDeliver, stageErrors.CategoryDelivery, "SEND", "x"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsHard(); got != tt.hard {
				t.Errorf("IsHard() = %v, want %v", got, tt.hard)
			}
			if got := tt.err.ShouldRecord(); got != tt.record {
				t.Errorf("ShouldRecord() = %v, want %v", got, tt.record)
			}
		})
	}
}
