package domain

// StageID names a stage of the pipeline.
type StageID string

const (
	StageRelevanceCheck StageID = "relevance-check"
	StageEthicsCheck    StageID = "ethics-check"
	StageKnowledgeBase  StageID = "knowledge-base-answer"
	StageWebResearch    StageID = "web-research"
	StageSynthesis      StageID = "synthesis"
	StageBiasReview     StageID = "bias-review"
)

// Stages lists every stage in execution order.
var Stages = []StageID{
	StageRelevanceCheck,
	StageEthicsCheck,
	StageKnowledgeBase,
	StageWebResearch,
	StageSynthesis,
	StageBiasReview,
}

// Signal is the transition signal emitted by a stage.
type Signal string

const (
	SignalSuccess          Signal = "success"
	SignalRetryDomain      Signal = "retry-domain"
	SignalRetryEthics      Signal = "retry-ethics"
	SignalValidationFailed Signal = "validation-failed"
	SignalProceed          Signal = "proceed"
)

// StageFailure describes a stage that could not produce a signal.
type StageFailure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// StageResult is the outcome of one stage execution: either a signal with a
// delta, or a failure.
type StageResult struct {
	Signal  Signal
	Delta   StateDelta
	Failure *StageFailure
}

// Succeeded builds a successful stage result.
func Succeeded(signal Signal, delta StateDelta) StageResult {
	return StageResult{Signal: signal, Delta: delta}
}

// Failed builds a failed stage result.
func Failed(kind ErrorKind, message string, err error) StageResult {
	return StageResult{
		Failure: &StageFailure{
			Kind:    kind,
			Message: message,
			Err:     err,
		},
	}
}

// IsFailure reports whether the stage failed.
func (r StageResult) IsFailure() bool {
	return r.Failure != nil
}
