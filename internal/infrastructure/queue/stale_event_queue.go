package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

// StaleEventSource is the event storage the queue claims from.
// The postgres implementation claims with FOR UPDATE SKIP LOCKED.
type StaleEventSource interface {
	ListStale(ctx context.Context, olderThan time.Time, maxAttempts int, limit int) ([]*event.WebhookEvent, error)
	CountStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int64, error)
	RecordError(ctx context.Context, id string, message string) error
}

// Config controls which events count as stale.
type Config struct {
	StaleAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

// StaleEventQueue implements TaskQueue over unprocessed message events.
type StaleEventQueue struct {
	source StaleEventSource
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []*Task
}

var _ TaskQueue = (*StaleEventQueue)(nil)

// NewStaleEventQueue creates the sweeper queue.
func NewStaleEventQueue(source StaleEventSource, cfg Config, log zerolog.Logger) *StaleEventQueue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &StaleEventQueue{
		source: source,
		cfg:    cfg,
		log:    log.With().Str("component", "stale-event-queue").Logger(),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (q *StaleEventQueue) WithClock(now func() time.Time) *StaleEventQueue {
	q.now = now
	return q
}

// Dequeue returns the next claimed event, claiming a new batch when the buffer is empty.
func (q *StaleEventQueue) Dequeue(ctx context.Context) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		now := q.now()
		events, err := q.source.ListStale(ctx, q.cutoff(), q.cfg.MaxAttempts, q.cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("dequeue stale events: %w", err)
		}
		for _, ev := range events {
			q.pending = append(q.pending, &Task{
				EventID:   ev.ID,
				Attempts:  ev.Attempts,
				CreatedAt: ev.CreatedAt,
				ClaimedAt: now,
			})
		}
		if len(events) > 0 {
			q.log.Debug().Int("count", len(events)).Msg("claimed stale webhook events")
		}
	}

	if len(q.pending) == 0 {
		return nil, nil
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	return task, nil
}

// MarkFailed writes the attempt failure on the event.
func (q *StaleEventQueue) MarkFailed(ctx context.Context, eventID string, taskErr error) error {
	message := fmt.Sprintf("Reprocessing failed: %s", taskErr.Error())
	if err := q.source.RecordError(ctx, eventID, message); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// GetQueueDepth counts events waiting for the sweeper.
func (q *StaleEventQueue) GetQueueDepth(ctx context.Context) (int64, error) {
	count, err := q.source.CountStale(ctx, q.cutoff(), q.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("get queue depth: %w", err)
	}
	return count, nil
}

func (q *StaleEventQueue) cutoff() time.Time {
	return q.now().Add(-q.cfg.StaleAfter)
}
