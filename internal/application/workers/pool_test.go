package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	promcollector "github.com/aescanero/aerodoc/pkg/adapters/metrics/prometheus"
)

func newTestPool(t *testing.T, size, queue int, handler Handler) *Pool {
	t.Helper()
	metrics := promcollector.NewCollectorWith(prometheus.NewRegistry())
	return NewPool(size, queue, handler, metrics, zap.NewNop(), time.Hour)
}

func TestPoolExecutesSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	var wg sync.WaitGroup
	wg.Add(3)

	p := newTestPool(t, 2, 10, func(_ context.Context, job Job) {
		mu.Lock()
		seen = append(seen, job.RunID)
		mu.Unlock()
		wg.Done()
	})
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Submit(Job{RunID: id, Question: "q"}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestPoolQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	p := newTestPool(t, 1, 1, func(ctx context.Context, job Job) {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(Job{RunID: "running"}))
	<-started
	require.NoError(t, p.Submit(Job{RunID: "queued"}))

	err := p.Submit(Job{RunID: "refused"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, p.QueueDepth())
	assert.False(t, p.Health().IsHealthy())

	close(release)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := newTestPool(t, 1, 1, func(context.Context, Job) {})
	require.NoError(t, p.Start())
	require.NoError(t, p.Shutdown(context.Background()))

	assert.ErrorIs(t, p.Submit(Job{RunID: "late"}), ErrPoolStopped)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownCancelsRunningAndDrainsQueued(t *testing.T) {
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	cancelled := map[string]bool{}

	p := newTestPool(t, 1, 5, func(ctx context.Context, job Job) {
		if job.RunID == "running" {
			started <- struct{}{}
			<-ctx.Done()
		}
		mu.Lock()
		cancelled[job.RunID] = ctx.Err() != nil
		mu.Unlock()
	})
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(Job{RunID: "running"}))
	<-started
	require.NoError(t, p.Submit(Job{RunID: "queued"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"running": true, "queued": true}, cancelled)
	for _, s := range p.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, s)
	}
}

func TestPoolShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	defer close(block)

	p := newTestPool(t, 1, 1, func(context.Context, Job) {
		started <- struct{}{}
		<-block
	})
	require.NoError(t, p.Start())
	require.NoError(t, p.Submit(Job{RunID: "stuck"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolRecoversHandlerPanic(t *testing.T) {
	done := make(chan struct{})
	p := newTestPool(t, 1, 2, func(_ context.Context, job Job) {
		if job.RunID == "boom" {
			panic("handler bug")
		}
		close(done)
	})
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(Job{RunID: "boom"}))
	require.NoError(t, p.Submit(Job{RunID: "ok"}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive a handler panic")
	}
}

func TestHealthStatus(t *testing.T) {
	p := newTestPool(t, 3, 4, func(context.Context, Job) {})

	status := p.Health().GetStatus()
	assert.Equal(t, 3, status.TotalWorkers)
	assert.Equal(t, 3, status.IdleWorkers)
	assert.Equal(t, 0, status.BusyWorkers)
	assert.Equal(t, 4, status.QueueCapacity)
	assert.True(t, status.Healthy)
}
