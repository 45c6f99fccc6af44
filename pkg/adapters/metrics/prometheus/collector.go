package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aerodoc"

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted     prometheus.Counter
	runsFinished      *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	stagesExecuted    *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	stageRetries      *prometheus.CounterVec
	workerCalls       *prometheus.CounterVec
	workerLatency     *prometheus.HistogramVec
	llmTokens         *prometheus.CounterVec
	activeRuns        prometheus.Gauge
	queueDepth        prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a collector registered with the default registerer
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith creates a collector registered with reg
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsSubmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_submitted_total",
				Help:      "Total number of runs submitted",
			},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of runs finished by outcome status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		stagesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_executed_total",
				Help:      "Total number of stage executions by result",
			},
			[]string{"stage", "result"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Stage execution duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		stageRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_retries_total",
				Help:      "Total number of stage retries",
			},
			[]string{"stage"},
		),
		workerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_calls_total",
				Help:      "Total number of worker calls by status",
			},
			[]string{"worker", "status"},
		),
		workerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_latency_seconds",
				Help:      "Worker call latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60},
			},
			[]string{"worker"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of currently executing runs",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of runs waiting for a worker",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_pool_idle",
				Help:      "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_pool_busy",
				Help:      "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_pool_stopped",
				Help:      "Number of stopped workers",
			},
		),
	}
}

// RecordRunSubmitted records a run submission
func (c *Collector) RecordRunSubmitted() {
	c.runsSubmitted.Inc()
}

// RecordRunFinished records a terminal run outcome
func (c *Collector) RecordRunFinished(status string, duration time.Duration) {
	c.runsFinished.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStageExecuted records one stage execution. result is the emitted
// signal, or the failure kind when the stage failed.
func (c *Collector) RecordStageExecuted(stage, result string, duration time.Duration) {
	c.stagesExecuted.WithLabelValues(stage, result).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageRetry records a retried stage attempt
func (c *Collector) RecordStageRetry(stage string) {
	c.stageRetries.WithLabelValues(stage).Inc()
}

// RecordWorkerCall records a worker call and its latency
func (c *Collector) RecordWorkerCall(worker, status string, duration time.Duration) {
	c.workerCalls.WithLabelValues(worker, status).Inc()
	c.workerLatency.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordLLMTokens increments the count of LLM tokens used
func (c *Collector) RecordLLMTokens(model, tokenType string, count int) {
	c.llmTokens.WithLabelValues(model, tokenType).Add(float64(count))
}

// SetActiveRuns sets the number of currently executing runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// SetQueueDepth sets the number of queued runs
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
