package domain

import "time"

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventTypeRunSubmitted   EventType = "run.submitted"
	EventTypeRunStarted     EventType = "run.started"
	EventTypeStageStarted   EventType = "stage.started"
	EventTypeStageCompleted EventType = "stage.completed"
	EventTypeRunCompleted   EventType = "run.completed"
	EventTypeRunRejected    EventType = "run.rejected"
	EventTypeRunFailed      EventType = "run.failed"
	EventTypeRunCancelled   EventType = "run.cancelled"
)

// TopicRunEvents is the event bus topic carrying all run events.
const TopicRunEvents = "run.events"

// Event is a progress notification for presentation layers. Events are
// observational and never influence routing.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Stage     StageID                `json:"stage,omitempty"`
	Progress  float64                `json:"progress"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// IsTerminal reports whether the event ends a run.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventTypeRunCompleted, EventTypeRunRejected, EventTypeRunFailed, EventTypeRunCancelled:
		return true
	}
	return false
}

// TerminalEventType maps an outcome status to its event type.
func TerminalEventType(status OutcomeStatus) EventType {
	switch status {
	case OutcomeCompleted:
		return EventTypeRunCompleted
	case OutcomeRejected:
		return EventTypeRunRejected
	case OutcomeCancelled:
		return EventTypeRunCancelled
	default:
		return EventTypeRunFailed
	}
}
