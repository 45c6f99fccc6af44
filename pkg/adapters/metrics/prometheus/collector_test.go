package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/aerodoc/pkg/ports"
)

var _ ports.MetricsCollector = (*Collector)(nil)

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())

	c.RecordRunSubmitted()
	c.RecordRunSubmitted()
	c.RecordRunFinished("completed", 3*time.Second)
	c.RecordRunFinished("rejected", time.Second)
	c.RecordStageExecuted("relevance-check", "proceed", 200*time.Millisecond)
	c.RecordStageExecuted("web-research", "timeout", time.Second)
	c.RecordStageRetry("web-research")
	c.RecordWorkerCall("synthesizer", "ok", time.Second)
	c.RecordLLMTokens("claude", "input", 120)
	c.RecordLLMTokens("claude", "input", 30)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stagesExecuted.WithLabelValues("web-research", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageRetries.WithLabelValues("web-research")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerCalls.WithLabelValues("synthesizer", "ok")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.llmTokens.WithLabelValues("claude", "input")))
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())

	c.SetActiveRuns(3)
	c.SetQueueDepth(7)
	c.RecordWorkerPoolStatus(1, 2, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.workerPoolStopped))
}

func TestCollectorRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith(reg)
	c.RecordRunSubmitted()
	c.RecordStageExecuted("synthesis", "proceed", time.Second)

	n, err := testutil.GatherAndCount(reg, "aerodoc_runs_submitted_total", "aerodoc_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollectorsDoNotShareRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollectorWith(prometheus.NewRegistry())
		NewCollectorWith(prometheus.NewRegistry())
	})
}
