package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/aerodoc/internal/application/workers"
	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunNotActive is returned when cancelling a run that already finished.
var ErrRunNotActive = errors.New("run is not active")

// Dispatcher queues runs for asynchronous execution.
type Dispatcher interface {
	Submit(job workers.Job) error
}

// Manager coordinates the lifecycle of pipeline runs
type Manager struct {
	engine     *Engine
	eventBus   ports.EventBus
	storage    ports.StateStorage
	metrics    ports.MetricsCollector
	validator  *Validator
	logger     *zap.Logger
	dispatcher Dispatcher

	// Track active executions
	executions sync.Map // map[string]*executionContext
	active     atomic.Int64

	runTimeout time.Duration
}

// executionContext holds state for a single run
type executionContext struct {
	runID      string
	record     *domain.RunRecord
	cancelFunc context.CancelFunc
	ctx        context.Context
	mu         sync.Mutex
}

// NewManager creates a new run manager
func NewManager(
	engine *Engine,
	eventBus ports.EventBus,
	storage ports.StateStorage,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	runTimeout time.Duration,
) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if validator == nil {
		validator = NewValidator(0)
	}
	return &Manager{
		engine:     engine,
		eventBus:   eventBus,
		storage:    storage,
		metrics:    metrics,
		validator:  validator,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// UseDispatcher routes submitted runs through d instead of a goroutine per
// run. It must be called before the manager accepts submissions.
func (m *Manager) UseDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// Submit validates a question, records a new run and schedules it.
func (m *Manager) Submit(ctx context.Context, question string) (string, error) {
	q, err := m.validator.Normalize(question)
	if err != nil {
		return "", err
	}

	exec, err := m.register(ctx, context.Background(), q)
	if err != nil {
		return "", err
	}

	job := workers.Job{RunID: exec.runID, Question: q}
	if m.dispatcher == nil {
		go m.Execute(context.Background(), job)
		return exec.runID, nil
	}

	if err := m.dispatcher.Submit(job); err != nil {
		m.logger.Error("failed to schedule run",
			zap.String("run_id", exec.runID),
			zap.Error(err))
		m.unregister(exec)
		if delErr := m.storage.DeleteRun(ctx, exec.runID); delErr != nil {
			m.logger.Error("failed to delete unscheduled run",
				zap.String("run_id", exec.runID),
				zap.Error(delErr))
		}
		m.publish(ctx, domain.Event{
			Type:  domain.EventTypeRunFailed,
			RunID: exec.runID,
			Data:  map[string]interface{}{"error": "run could not be scheduled"},
		})
		return "", fmt.Errorf("failed to schedule run: %w", err)
	}

	return exec.runID, nil
}

// Ask runs a question synchronously and returns its outcome. The run is
// recorded like a submitted one and can be cancelled while it executes.
func (m *Manager) Ask(ctx context.Context, question string) (*domain.Outcome, error) {
	q, err := m.validator.Normalize(question)
	if err != nil {
		return nil, err
	}

	exec, err := m.register(ctx, ctx, q)
	if err != nil {
		return nil, err
	}

	return m.run(ctx, workers.Job{RunID: exec.runID, Question: q}), nil
}

// Execute runs a scheduled job to completion. It is the pool handler.
func (m *Manager) Execute(ctx context.Context, job workers.Job) {
	m.run(ctx, job)
}

// GetRun retrieves the record of a run
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	if val, ok := m.executions.Load(runID); ok {
		exec := val.(*executionContext)
		exec.mu.Lock()
		rec := snapshot(exec.record)
		exec.mu.Unlock()
		return rec, nil
	}

	rec, err := m.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns all known runs, most recently submitted first
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	runs, err := m.storage.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	return runs, nil
}

// CancelRun cancels a run that has not finished yet. The run itself records
// the cancelled outcome once its current worker call returns.
func (m *Manager) CancelRun(ctx context.Context, runID string) error {
	val, ok := m.executions.Load(runID)
	if !ok {
		if _, err := m.storage.GetRun(ctx, runID); err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}

	exec := val.(*executionContext)
	exec.mu.Lock()
	status := exec.record.Status
	exec.mu.Unlock()
	if status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}

	exec.cancelFunc()

	m.logger.Info("run cancellation requested",
		zap.String("run_id", runID),
		zap.String("status", string(status)))

	return nil
}

// ActiveRuns returns the number of runs currently executing
func (m *Manager) ActiveRuns() int {
	return int(m.active.Load())
}

// Shutdown cancels every run that has not finished
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down run manager")

	// Cancel all active executions
	m.executions.Range(func(key, value interface{}) bool {
		exec := value.(*executionContext)
		exec.cancelFunc()
		return true
	})

	m.logger.Info("run manager shut down complete")
	return nil
}

// register stores the submitted record and tracks the run. parent bounds
// the run's lifetime in addition to the run timeout.
func (m *Manager) register(ctx, parent context.Context, question string) (*executionContext, error) {
	runID := uuid.New().String()
	record := &domain.RunRecord{
		RunID:       runID,
		Question:    question,
		Status:      domain.RunStatusSubmitted,
		SubmittedAt: time.Now(),
	}

	if err := m.storage.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to save submitted run",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if m.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(parent, m.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(parent)
	}

	exec := &executionContext{
		runID:      runID,
		record:     snapshot(record),
		ctx:        runCtx,
		cancelFunc: cancel,
	}
	m.executions.Store(runID, exec)

	m.metrics.RecordRunSubmitted()
	m.publish(ctx, domain.Event{
		Type:  domain.EventTypeRunSubmitted,
		RunID: runID,
		Data:  map[string]interface{}{"question": question},
	})

	m.logger.Info("run submitted",
		zap.String("run_id", runID))

	return exec, nil
}

func (m *Manager) unregister(exec *executionContext) {
	exec.cancelFunc()
	m.executions.Delete(exec.runID)
}

// run executes a registered run and persists its outcome.
func (m *Manager) run(ctx context.Context, job workers.Job) *domain.Outcome {
	val, ok := m.executions.Load(job.RunID)
	if !ok {
		m.logger.Error("run is not registered",
			zap.String("run_id", job.RunID))
		return nil
	}
	exec := val.(*executionContext)
	defer m.unregister(exec)

	// The worker context (pool shutdown) also stops the run.
	stop := context.AfterFunc(ctx, exec.cancelFunc)
	defer stop()

	// Persistence and events outlive the run context.
	bg := context.WithoutCancel(ctx)

	m.metrics.SetActiveRuns(int(m.active.Add(1)))
	defer func() { m.metrics.SetActiveRuns(int(m.active.Add(-1))) }()

	now := time.Now()
	m.update(bg, exec, func(r *domain.RunRecord) {
		r.Status = domain.RunStatusRunning
		r.StartedAt = &now
	})
	m.publish(bg, domain.Event{Type: domain.EventTypeRunStarted, RunID: job.RunID})

	notify := func(p Progress) {
		eventType := domain.EventTypeStageStarted
		if p.Completed {
			eventType = domain.EventTypeStageCompleted
		}
		m.update(bg, exec, func(r *domain.RunRecord) {
			r.Stage = p.Stage
			r.Progress = p.Fraction
		})
		m.publish(bg, domain.Event{
			Type:     eventType,
			RunID:    p.RunID,
			Stage:    p.Stage,
			Progress: p.Fraction,
		})
	}

	state, outcome := m.engine.Run(exec.ctx, job.RunID, job.Question, notify)

	completedAt := time.Now()
	progress := 0.0
	if outcome.Succeeded() {
		progress = 1.0
	}
	m.update(bg, exec, func(r *domain.RunRecord) {
		r.Status = domain.RunStatusFor(outcome.Status)
		if outcome.Stage != "" {
			r.Stage = outcome.Stage
		}
		r.Progress = progress
		r.State = state.Clone()
		r.Outcome = outcome
		r.CompletedAt = &completedAt
	})

	data := map[string]interface{}{"status": string(outcome.Status)}
	if outcome.ErrorKind != domain.ErrorKindNone {
		data["error_kind"] = string(outcome.ErrorKind)
		data["message"] = outcome.Message
	}
	m.publish(bg, domain.Event{
		Type:     domain.TerminalEventType(outcome.Status),
		RunID:    job.RunID,
		Stage:    outcome.Stage,
		Progress: progress,
		Data:     data,
	})

	m.metrics.RecordRunFinished(string(outcome.Status), outcome.Duration)

	return outcome
}

// update mutates the tracked record and persists it.
func (m *Manager) update(ctx context.Context, exec *executionContext, mutate func(r *domain.RunRecord)) {
	exec.mu.Lock()
	mutate(exec.record)
	rec := snapshot(exec.record)
	exec.mu.Unlock()

	if err := m.storage.SaveRun(ctx, rec); err != nil {
		m.logger.Error("failed to save run",
			zap.String("run_id", rec.RunID),
			zap.String("status", string(rec.Status)),
			zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, event domain.Event) {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now()

	if err := m.eventBus.Publish(ctx, domain.TopicRunEvents, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", event.RunID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func snapshot(r *domain.RunRecord) *domain.RunRecord {
	c := *r
	if r.State != nil {
		c.State = r.State.Clone()
	}
	return &c
}
