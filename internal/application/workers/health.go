package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor monitors worker health
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus represents the health status of the worker pool
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueueDepth     int       `json:"queue_depth"`
	QueueCapacity  int       `json:"queue_capacity"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

// run is the main health monitoring loop
func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth checks worker health and logs status
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Debug("worker pool health check",
		zap.Int("total", status.TotalWorkers),
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queue_depth", status.QueueDepth),
		zap.Bool("healthy", status.Healthy))

	// Record metrics
	h.pool.metrics.RecordWorkerPoolStatus(
		status.IdleWorkers,
		status.BusyWorkers,
		status.StoppedWorkers,
	)
	h.pool.metrics.SetQueueDepth(status.QueueDepth)

	if !status.Healthy {
		h.logger.Warn("worker pool is unhealthy",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	}

	// Warn if all workers are busy and runs are waiting
	if status.BusyWorkers == status.TotalWorkers && status.QueueDepth > 0 {
		h.logger.Warn("all workers are busy - consider scaling up",
			zap.Int("total", status.TotalWorkers),
			zap.Int("queue_depth", status.QueueDepth))
	}
}

// GetStatus returns the current health status
func (h *HealthMonitor) GetStatus() *HealthStatus {
	workerStatuses := h.pool.GetStatus()

	var idle, busy, stopped int
	for _, status := range workerStatuses {
		switch status {
		case WorkerStatusIdle:
			idle++
		case WorkerStatusBusy:
			busy++
		case WorkerStatusStopped:
			stopped++
		}
	}

	total := len(workerStatuses)
	depth := h.pool.QueueDepth()
	capacity := cap(h.pool.queue)

	// A saturated queue means new runs are being refused.
	healthy := total > 0 && stopped == 0 && (capacity == 0 || depth < capacity)

	return &HealthStatus{
		TotalWorkers:   total,
		IdleWorkers:    idle,
		BusyWorkers:    busy,
		StoppedWorkers: stopped,
		QueueDepth:     depth,
		QueueCapacity:  capacity,
		Healthy:        healthy,
		Timestamp:      time.Now(),
	}
}

// IsHealthy returns true if the worker pool is healthy
func (h *HealthMonitor) IsHealthy() bool {
	status := h.GetStatus()
	return status.Healthy
}
