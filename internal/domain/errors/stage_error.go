// Package errors defines typed pipeline stage outcomes.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies how the pipeline reacts to a stage outcome.
type Category string

const (
	// CategoryDegraded marks a malformed input field substituted with a default.
	CategoryDegraded Category = "degraded"
	// CategorySuppressed marks an intentional no-op such as a group message.
	CategorySuppressed Category = "suppressed"
	// CategoryRecorded marks a terminal precondition failure written to the event.
	CategoryRecorded Category = "recorded"
	// CategoryDelivery marks an outbound send failure recorded on the message.
	CategoryDelivery Category = "delivery"
	// CategoryHard marks a failure that fails the whole pipeline run.
	CategoryHard Category = "hard"
)

// Stage names a pipeline component.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageGroup     Stage = "group_filter"
	StageResolve   Stage = "resolve"
	StagePersist   Stage = "persist"
	StageCorrelate Stage = "correlate"
	StageDispatch  Stage = "dispatch"
	StageReply     Stage = "reply"
	StageDeliver   Stage = "deliver"
)

// Common codes.
const (
	CodeAlreadyProcessed = "ALREADY_PROCESSED"
	CodeNoChannel        = "NO_CHANNEL"
	CodeNoAgent          = "NO_AGENT"
	CodeAgentInactive    = "AGENT_INACTIVE"
	CodeMissingRemote    = "MISSING_REMOTE"
	CodeChatCreation     = "CHAT_CREATION"
	CodeMessageCreation  = "MESSAGE_CREATION"
	CodeReplyFailed      = "REPLY_FAILED"
	CodeEventPersist     = "EVENT_PERSIST"
	CodeStorage          = "STORAGE"
)

// StageError is the typed outcome of a pipeline stage that did not complete the happy path.
// Message is the human readable audit text stored on the event.
type StageError struct {
	Stage    Stage    `json:"stage"`
	Category Category `json:"category"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Cause    error    `json:"-"`
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// IsHard reports whether the error must fail the enclosing pipeline run.
func (e *StageError) IsHard() bool {
	return e.Category == CategoryHard
}

// ShouldRecord reports whether the message belongs on the event's error field.
// Suppressed outcomes are still recorded when they carry a message.
func (e *StageError) ShouldRecord() bool {
	switch e.Category {
	case CategoryRecorded, CategoryHard:
		return true
	case CategorySuppressed:
		return e.Message != ""
	default:
		return false
	}
}

// New creates a stage error.
func New(stage Stage, category Category, code, message string) *StageError {
	return &StageError{
		Stage:    stage,
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// WithCause adds an underlying cause to the error.
func (e *StageError) WithCause(cause error) *StageError {
	e.Cause = cause
	return e
}

// Recorded creates a terminal precondition failure.
func Recorded(stage Stage, code, message string) *StageError {
	return New(stage, CategoryRecorded, code, message)
}

// Suppressed creates a policy no-op.
func Suppressed(stage Stage, code, message string) *StageError {
	return New(stage, CategorySuppressed, code, message)
}

// Hard wraps a failure that aborts the pipeline run.
func Hard(stage Stage, code, message string, cause error) *StageError {
	return New(stage, CategoryHard, code, message).WithCause(cause)
}

// As extracts a StageError from err.
func As(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
