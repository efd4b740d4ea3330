package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/infrastructure/metrics"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/queue"
)

// EventProcessor finishes a stored webhook event.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID string) error
}

// Pool manages the sweeper workers.
type Pool struct {
	workers      []*Worker
	queue        queue.TaskQueue
	processor    EventProcessor
	workerCount  int
	taskTimeout  time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount  int
	TaskTimeout  time.Duration
	PollInterval time.Duration
}

// NewPool creates a new worker pool.
func NewPool(
	queue queue.TaskQueue,
	processor EventProcessor,
	cfg Config,
	log zerolog.Logger,
) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Pool{
		queue:        queue,
		processor:    processor,
		workerCount:  cfg.WorkerCount,
		taskTimeout:  cfg.TaskTimeout,
		pollInterval: cfg.PollInterval,
		log:          log.With().Str("component", "worker-pool").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start initializes and starts all workers.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info().Int("worker_count", p.workerCount).Dur("poll_interval", p.pollInterval).Msg("starting sweeper pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(i+1, p.queue, p.processor, p.taskTimeout, p.pollInterval, p.log)
		p.workers[i] = worker

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportDepth(ctx)
	}()

	return nil
}

// Stop gracefully shuts down all workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.log.Info().Msg("stopping sweeper pool")
		close(p.stopChan)
		for _, worker := range p.workers {
			worker.Stop()
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
	case <-time.After(30 * time.Second):
		p.log.Warn().Msg("worker pool shutdown timed out")
	}
}

// GetQueueDepth returns the current queue depth.
func (p *Pool) GetQueueDepth(ctx context.Context) (int64, error) {
	return p.queue.GetQueueDepth(ctx)
}

func (p *Pool) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			depth, err := p.queue.GetQueueDepth(ctx)
			if err != nil {
				p.log.Warn().Err(err).Msg("failed to read sweeper queue depth")
				continue
			}
			metrics.SetQueueDepth(int(depth))
		}
	}
}
