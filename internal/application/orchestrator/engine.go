package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStageRevisited means the transition table routed a run back into a
	// stage it already executed.
	ErrStageRevisited = errors.New("stage revisited")
	// ErrUnknownStage means the transition table routed to a stage the
	// engine does not have.
	ErrUnknownStage = errors.New("unknown stage")
)

// stageProgress is the fraction of the run reached when a stage starts.
var stageProgress = map[domain.StageID]float64{
	domain.StageRelevanceCheck: 0.15,
	domain.StageEthicsCheck:    0.25,
	domain.StageKnowledgeBase:  0.45,
	domain.StageWebResearch:    0.65,
	domain.StageSynthesis:      0.85,
	domain.StageBiasReview:     0.95,
}

// Progress is an observational notification emitted around each stage.
type Progress struct {
	RunID     string
	Stage     domain.StageID
	Fraction  float64
	Completed bool
}

// ProgressFunc receives progress notifications. It must not block.
type ProgressFunc func(p Progress)

// Workers are the collaborators the stages call.
type Workers struct {
	RelevanceJudge    ports.Worker
	EthicsJudge       ports.Worker
	KnowledgeAnswerer ports.Worker
	WebResearcher     ports.Worker
	Synthesizer       ports.Worker
	BiasReviewer      ports.Worker
	Retriever         ports.Retriever
}

func (w Workers) validate() error {
	required := []struct {
		name    string
		missing bool
	}{
		{"relevance judge", w.RelevanceJudge == nil},
		{"ethics judge", w.EthicsJudge == nil},
		{"knowledge answerer", w.KnowledgeAnswerer == nil},
		{"web researcher", w.WebResearcher == nil},
		{"synthesizer", w.Synthesizer == nil},
		{"bias reviewer", w.BiasReviewer == nil},
		{"retriever", w.Retriever == nil},
	}
	for _, r := range required {
		if r.missing {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	return nil
}

// RetryPolicy bounds the retries of research, synthesis and review stages.
// Gating stages are never retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
}

// backoff returns the delay before the attempt following attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = time.Millisecond
	}
	mult := p.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxBackoff > 0 && d > p.MaxBackoff {
			d = p.MaxBackoff
			break
		}
	}
	if p.Jitter {
		d = time.Duration(rand.Int63n(int64(d) + 1)) // #nosec G404 -- jitter only
	}
	return d
}

// Options configure an Engine.
type Options struct {
	Logger       *zap.Logger
	Metrics      ports.MetricsCollector
	StageTimeout time.Duration
	Retry        RetryPolicy
}

// Engine drives one run through the stages according to the transition
// table. It holds no per-run state and is safe for concurrent runs.
type Engine struct {
	stages       map[domain.StageID]Stage
	next         func(domain.StageID, domain.Signal) (NextAction, error)
	logger       *zap.Logger
	metrics      ports.MetricsCollector
	stageTimeout time.Duration
	retry        RetryPolicy
}

// NewEngine builds an engine over the standard stages.
func NewEngine(w Workers, opts Options) (*Engine, error) {
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("invalid workers: %w", err)
	}

	stages := []Stage{
		newRelevanceStage(w.RelevanceJudge),
		newEthicsStage(w.EthicsJudge),
		&knowledgeStage{retriever: w.Retriever, worker: w.KnowledgeAnswerer},
		newWebResearchStage(w.WebResearcher),
		newSynthesisStage(w.Synthesizer),
		newBiasReviewStage(w.BiasReviewer),
	}

	e := &Engine{
		stages:       make(map[domain.StageID]Stage, len(stages)),
		next:         Next,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		stageTimeout: opts.StageTimeout,
		retry:        opts.Retry,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	for _, s := range stages {
		e.stages[s.ID()] = s
	}
	return e, nil
}

// RunPipeline runs one question to a terminal outcome under a fresh run ID.
func (e *Engine) RunPipeline(ctx context.Context, question string) *domain.Outcome {
	_, outcome := e.Run(ctx, uuid.New().String(), question, nil)
	return outcome
}

// Run executes a run and returns its final state and outcome. It never
// panics on worker errors and always returns a terminal outcome.
func (e *Engine) Run(ctx context.Context, runID, question string, notify ProgressFunc) (*domain.PipelineState, *domain.Outcome) {
	if notify == nil {
		notify = func(Progress) {}
	}
	start := time.Now()
	state := domain.NewPipelineState(runID, question)

	e.logger.Info("run started",
		zap.String("run_id", runID))

	outcome := e.drive(ctx, state, notify)
	outcome.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("status", string(outcome.Status)),
		zap.Duration("duration", outcome.Duration),
	}
	switch outcome.Status {
	case domain.OutcomeCompleted:
		e.logger.Info("run completed", fields...)
	case domain.OutcomeRejected:
		e.logger.Info("run rejected", append(fields,
			zap.String("error_kind", string(outcome.ErrorKind)),
			zap.String("stage", string(outcome.Stage)))...)
	default:
		e.logger.Warn("run did not complete", append(fields,
			zap.String("error_kind", string(outcome.ErrorKind)),
			zap.String("stage", string(outcome.Stage)),
			zap.String("message", outcome.Message))...)
	}

	return state, outcome
}

func (e *Engine) drive(ctx context.Context, state *domain.PipelineState, notify ProgressFunc) *domain.Outcome {
	visited := make(map[domain.StageID]bool, len(e.stages))
	current := EntryStage

	for {
		if err := ctx.Err(); err != nil {
			return e.abort(state, current, contextFailure(err))
		}
		if visited[current] {
			return e.abort(state, current, routingFailure(fmt.Errorf("%w: %s", ErrStageRevisited, current)))
		}
		visited[current] = true

		stage, ok := e.stages[current]
		if !ok {
			return e.abort(state, current, routingFailure(fmt.Errorf("%w: %s", ErrUnknownStage, current)))
		}

		notify(Progress{RunID: state.RunID, Stage: current, Fraction: stageProgress[current]})
		result := e.execute(ctx, stage, state)
		if result.IsFailure() {
			return e.abort(state, current, result)
		}
		state.Apply(result.Delta)
		notify(Progress{RunID: state.RunID, Stage: current, Fraction: stageProgress[current], Completed: true})

		action, err := e.next(current, result.Signal)
		if err != nil {
			return e.abort(state, current, routingFailure(err))
		}

		switch action.Kind {
		case ActionGoTo:
			current = action.Stage
			continue
		case ActionComplete:
			if !state.Terminal() {
				return e.abort(state, current, routingFailure(errors.New("completed without a reviewed document")))
			}
			return domain.Completed(state)
		case ActionReject:
			if !state.Terminal() {
				return e.abort(state, current, routingFailure(errors.New("rejected without an error kind")))
			}
			return domain.Rejected(state, current)
		default:
			return e.abort(state, current, routingFailure(fmt.Errorf("unknown action %q", action.Kind)))
		}
	}
}

// execute runs a stage under the stage timeout, retrying retryable failures
// of non-gating stages.
func (e *Engine) execute(ctx context.Context, stage Stage, state *domain.PipelineState) domain.StageResult {
	attempts := 1
	if !isGate(stage.ID()) && e.retry.MaxAttempts > 1 {
		attempts = e.retry.MaxAttempts
	}

	for attempt := 1; ; attempt++ {
		result := e.executeOnce(ctx, stage, state)
		if !result.IsFailure() || attempt >= attempts || !retryable(result) {
			return result
		}

		delay := e.retry.backoff(attempt)
		e.logger.Warn("stage failed, retrying",
			zap.String("run_id", state.RunID),
			zap.String("stage", string(stage.ID())),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(result.Failure.Err))
		e.metrics.RecordStageRetry(string(stage.ID()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return contextFailure(ctx.Err())
		case <-timer.C:
		}
	}
}

func (e *Engine) executeOnce(ctx context.Context, stage Stage, state *domain.PipelineState) domain.StageResult {
	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, e.stageTimeout)
	}
	defer cancel()

	e.logger.Debug("stage started",
		zap.String("run_id", state.RunID),
		zap.String("stage", string(stage.ID())))

	started := time.Now()
	result := stage.Execute(stageCtx, state)
	duration := time.Since(started)

	label := string(result.Signal)
	if result.IsFailure() {
		label = string(result.Failure.Kind)
	}
	e.metrics.RecordStageExecuted(string(stage.ID()), label, duration)

	e.logger.Debug("stage finished",
		zap.String("run_id", state.RunID),
		zap.String("stage", string(stage.ID())),
		zap.String("result", label),
		zap.Duration("duration", duration))

	return result
}

// abort records a failure in the state and builds the terminal outcome.
func (e *Engine) abort(state *domain.PipelineState, stage domain.StageID, result domain.StageResult) *domain.Outcome {
	f := result.Failure
	state.Apply(domain.Rejection(f.Kind, f.Message))
	if f.Err != nil {
		e.logger.Error("stage failed",
			zap.String("run_id", state.RunID),
			zap.String("stage", string(stage)),
			zap.String("error_kind", string(f.Kind)),
			zap.Error(f.Err))
	}
	return domain.Failure(state, stage)
}

func isGate(id domain.StageID) bool {
	return id == domain.StageRelevanceCheck || id == domain.StageEthicsCheck
}

func retryable(result domain.StageResult) bool {
	var we *ports.WorkerError
	return errors.As(result.Failure.Err, &we) && we.Retryable()
}

func contextFailure(err error) domain.StageResult {
	if errors.Is(err, context.Canceled) {
		return domain.Failed(domain.ErrorKindCancelled, "run cancelled", err)
	}
	return domain.Failed(domain.ErrorKindTechnical, "execution could not complete: run timed out", err)
}

func routingFailure(err error) domain.StageResult {
	return domain.Failed(domain.ErrorKindTechnical, "execution could not complete: internal routing error", err)
}

type noopMetrics struct{}

func (noopMetrics) RecordRunSubmitted() {}
func (noopMetrics) RecordRunFinished(string, time.Duration) {}
func (noopMetrics) RecordStageExecuted(string, string, time.Duration) {}
func (noopMetrics) RecordStageRetry(string) {}
func (noopMetrics) RecordWorkerCall(string, string, time.Duration) {}
func (noopMetrics) RecordLLMTokens(string, string, int) {}
func (noopMetrics) SetActiveRuns(int) {}
func (noopMetrics) SetQueueDepth(int) {}
func (noopMetrics) RecordWorkerPoolStatus(int, int, int) {}
