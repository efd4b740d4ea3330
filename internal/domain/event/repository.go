package event

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the event does not exist.
	ErrNotFound = errors.New("webhook event not found")
	// ErrPayloadTooLarge is returned when the raw payload exceeds the storage limit.
	ErrPayloadTooLarge = errors.New("raw payload too large")
)

// Repository persists webhook events.
type Repository interface {
	Create(ctx context.Context, ev *WebhookEvent) error
	// FindByID loads the event with its channel and agent.
	FindByID(ctx context.Context, id string) (*WebhookEvent, error)
	// MarkProcessed sets processed=true with the terminal error and related message.
	MarkProcessed(ctx context.Context, id string, update ProcessingUpdate) error
	// RecordError sets the error field without touching the processed state.
	RecordError(ctx context.Context, id string, message string) error
	// ListStale claims unprocessed message events older than the cutoff and increments their attempts.
	ListStale(ctx context.Context, olderThan time.Time, maxAttempts int, limit int) ([]*WebhookEvent, error)
}
