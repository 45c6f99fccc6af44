package domain

import "time"

// OutcomeStatus is the terminal status of a run.
type OutcomeStatus string

const (
	// OutcomeCompleted means the reviewed document was produced.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeRejected means a gate rejected the question. The caller is
	// expected to collect a new question and start a fresh run.
	OutcomeRejected OutcomeStatus = "rejected"
	// OutcomeFailed means the question was accepted but the system could not
	// complete the run.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeCancelled means the run was cancelled by its caller.
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Artifacts are the intermediate outputs of a completed run.
type Artifacts struct {
	KnowledgeAnswer     string `json:"knowledge_answer"`
	RetrievedContext    string `json:"retrieved_context"`
	WebAnswer           string `json:"web_answer"`
	SynthesizedDocument string `json:"synthesized_document"`
}

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID     string        `json:"run_id"`
	Status    OutcomeStatus `json:"status"`
	Document  string        `json:"document,omitempty"`
	Artifacts *Artifacts    `json:"artifacts,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	// Stage is the stage that ended the run early, if any.
	Stage    StageID       `json:"stage,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Completed builds the outcome of a successful run from its final state.
func Completed(s *PipelineState) *Outcome {
	return &Outcome{
		RunID:    s.RunID,
		Status:   OutcomeCompleted,
		Document: s.ReviewedDocument,
		Artifacts: &Artifacts{
			KnowledgeAnswer:     s.KnowledgeAnswer,
			RetrievedContext:    s.RetrievedContext,
			WebAnswer:           s.WebAnswer,
			SynthesizedDocument: s.SynthesizedDocument,
		},
	}
}

// Rejected builds the outcome of a run stopped by a gate.
func Rejected(s *PipelineState, stage StageID) *Outcome {
	return &Outcome{
		RunID:     s.RunID,
		Status:    OutcomeRejected,
		ErrorKind: s.ValidationErrorKind,
		Message:   s.ValidationErrorMessage,
		Stage:     stage,
	}
}

// Failure builds the outcome of a run that failed or was cancelled.
func Failure(s *PipelineState, stage StageID) *Outcome {
	status := OutcomeFailed
	if s.ValidationErrorKind == ErrorKindCancelled {
		status = OutcomeCancelled
	}
	return &Outcome{
		RunID:     s.RunID,
		Status:    status,
		ErrorKind: s.ValidationErrorKind,
		Message:   s.ValidationErrorMessage,
		Stage:     stage,
	}
}

// Succeeded reports whether the run produced a document.
func (o *Outcome) Succeeded() bool {
	return o.Status == OutcomeCompleted
}
