package queue

import (
	"context"
	"time"
)

// Task is a stale webhook event claimed for reprocessing.
type Task struct {
	EventID   string
	Attempts  int
	CreatedAt time.Time
	ClaimedAt time.Time
}

// TaskQueue hands stale events to sweeper workers.
type TaskQueue interface {
	// Dequeue claims the next stale event, or returns nil when none is waiting.
	Dequeue(ctx context.Context) (*Task, error)

	// MarkFailed records a failed reprocessing attempt on the event.
	MarkFailed(ctx context.Context, eventID string, err error) error

	// GetQueueDepth returns the number of events waiting for the sweeper.
	GetQueueDepth(ctx context.Context) (int64, error)
}
