package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/infrastructure/metrics"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/observability"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/queue"
)

const jobType = "stale_event_sweep"

// Worker reprocesses stale webhook events from the queue.
type Worker struct {
	id           int
	queue        queue.TaskQueue
	processor    EventProcessor
	taskTimeout  time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
	stopChan     chan struct{}
}

// NewWorker creates a new sweeper worker.
func NewWorker(
	id int,
	queue queue.TaskQueue,
	processor EventProcessor,
	taskTimeout time.Duration,
	pollInterval time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:           id,
		queue:        queue,
		processor:    processor,
		taskTimeout:  taskTimeout,
		pollInterval: pollInterval,
		log:          log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start polls the queue until the context ends or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			for w.processNextTask(ctx) {
				select {
				case <-ctx.Done():
					return
				case <-w.stopChan:
					return
				default:
				}
			}
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// processNextTask handles one task and reports whether one was available.
func (w *Worker) processNextTask(ctx context.Context) bool {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to dequeue task")
		return false
	}
	if task == nil {
		return false
	}

	w.log.Info().
		Str("event_id", task.EventID).
		Int("attempt", task.Attempts).
		Time("created_at", task.CreatedAt).
		Msg("reprocessing stale webhook event")

	taskCtx, span := observability.StartJobSpan(ctx, jobType, task.EventID, task.Attempts)
	defer span.End()
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, w.taskTimeout)
		defer cancel()
	}

	if err := w.processor.ProcessEvent(taskCtx, task.EventID); err != nil {
		metrics.RecordBackgroundJob(jobType, "failed")
		observability.RecordError(span, err, "sweeper")
		w.log.Error().Err(err).Str("event_id", task.EventID).Msg("task execution failed")
		if markErr := w.queue.MarkFailed(ctx, task.EventID, err); markErr != nil {
			w.log.Error().Err(markErr).Str("event_id", task.EventID).Msg("failed to mark task as failed")
		}
		return true
	}

	metrics.RecordBackgroundJob(jobType, "completed")
	w.log.Info().Str("event_id", task.EventID).Msg("task completed successfully")
	return true
}
