// Package ports defines the interfaces between the orchestrator and the
// adapters that implement workers, retrieval, storage, events and metrics.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/aerodoc/pkg/domain"
)

// Worker turns a prompt context into natural-language text. Failures should
// be reported as *WorkerError.
type Worker interface {
	Invoke(ctx context.Context, input map[string]string) (string, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, input map[string]string) (string, error)

// Invoke calls f.
func (f WorkerFunc) Invoke(ctx context.Context, input map[string]string) (string, error) {
	return f(ctx, input)
}

// Retriever returns ordered passages relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string) ([]domain.Passage, error)
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// RelatedQuestion is a "people also ask" entry.
type RelatedQuestion struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
}

// SearchResponse is the raw response of a web search backend.
type SearchResponse struct {
	Query           string            `json:"query"`
	Organic         []SearchResult    `json:"organic"`
	PeopleAlsoAsk   []RelatedQuestion `json:"people_also_ask"`
	RelatedSearches []string          `json:"related_searches"`
}

// WebSearcher queries a web search backend.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// LLMClient generates completions.
type LLMClient interface {
	GenerateCompletion(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error)
}

// EventHandler handles an event delivered by the event bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and subscribes to run events.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events on topic to handler until ctx is done.
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// StateStorage persists run records.
type StateStorage interface {
	SaveRun(ctx context.Context, record *domain.RunRecord) error
	// GetRun returns domain.ErrRunNotFound when the run is unknown.
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
	ListRuns(ctx context.Context) ([]*domain.RunRecord, error)
}

// MetricsCollector records orchestrator metrics.
type MetricsCollector interface {
	RecordRunSubmitted()
	RecordRunFinished(status string, duration time.Duration)
	RecordStageExecuted(stage, result string, duration time.Duration)
	RecordStageRetry(stage string)
	RecordWorkerCall(worker, status string, duration time.Duration)
	RecordLLMTokens(model, tokenType string, count int)
	SetActiveRuns(count int)
	SetQueueDepth(depth int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
