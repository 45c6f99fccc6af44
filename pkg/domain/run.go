package domain

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when no record exists for a run ID.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle status of a submitted run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusRejected  RunStatus = "rejected"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusRejected, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// RunStatusFor maps an outcome status to the run status stored for it.
func RunStatusFor(status OutcomeStatus) RunStatus {
	switch status {
	case OutcomeCompleted:
		return RunStatusCompleted
	case OutcomeRejected:
		return RunStatusRejected
	case OutcomeCancelled:
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}

// RunRecord is what storage keeps about a run. The pipeline state is a
// snapshot taken when the run finished.
type RunRecord struct {
	RunID       string         `json:"run_id"`
	Question    string         `json:"question"`
	Status      RunStatus      `json:"status"`
	Stage       StageID        `json:"stage,omitempty"`
	Progress    float64        `json:"progress"`
	State       *PipelineState `json:"state,omitempty"`
	Outcome     *Outcome       `json:"outcome,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
