package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/aerodoc/pkg/ports"
	"go.uber.org/zap"
)

var (
	// ErrPoolStopped is returned when submitting to a pool that is shutting down.
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrQueueFull is returned when the run queue has no free slot.
	ErrQueueFull = errors.New("run queue is full")
)

// Job is a queued pipeline run
type Job struct {
	RunID    string
	Question string
}

// Handler executes a job. The context is cancelled when the pool shuts down.
type Handler func(ctx context.Context, job Job)

// Pool manages a pool of worker goroutines executing queued runs
type Pool struct {
	size    int
	handler Handler
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	queue   chan Job
	mu      sync.RWMutex
	stopped bool

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size, queueSize int,
	handler Handler,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		handler: handler,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan Job, queueSize),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < size; i++ {
		pool.workers[i] = &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    pool,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool",
		zap.Int("size", p.size),
		zap.Int("queue_size", cap(p.queue)))

	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	// Start health monitor
	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Health returns the pool health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Shutdown gracefully shuts down the worker pool. Running jobs see their
// context cancelled; queued jobs are still handed to the handler with the
// cancelled context so their runs are finalized.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	// Stop health monitor
	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	// Wait for all workers to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for job := range w.pool.queue {
		w.pool.metrics.SetQueueDepth(len(w.pool.queue))
		w.handle(ctx, job)
	}

	w.setStatus(WorkerStatusStopped)
	w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
}

// handle executes one job, containing handler panics to the job.
func (w *worker) handle(ctx context.Context, job Job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("run handler panicked",
				zap.String("worker_id", w.id),
				zap.String("run_id", job.RunID),
				zap.Any("panic", r))
		}
	}()

	w.pool.logger.Debug("executing run",
		zap.String("worker_id", w.id),
		zap.String("run_id", job.RunID))

	w.pool.handler(ctx, job)
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
