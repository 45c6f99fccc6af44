package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/aerodoc/pkg/domain"
)

// InMemoryStateStorage implements StateStorage using an in-memory map.
// Records are lost when the process exits.
type InMemoryStateStorage struct {
	runs map[string]*domain.RunRecord
	mu   sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		runs: make(map[string]*domain.RunRecord),
	}
}

// SaveRun stores a copy of the record
func (s *InMemoryStateStorage) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("run record must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.RunID] = copyRecord(record)
	return nil
}

// GetRun retrieves a copy of the record
func (s *InMemoryStateStorage) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return copyRecord(rec), nil
}

// DeleteRun removes a record
func (s *InMemoryStateStorage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// ListRuns returns copies of all records in no particular order
func (s *InMemoryStateStorage) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		runs = append(runs, copyRecord(rec))
	}
	return runs, nil
}

// Deep copy to avoid mutations
func copyRecord(r *domain.RunRecord) *domain.RunRecord {
	c := *r
	if r.State != nil {
		c.State = r.State.Clone()
	}
	if r.Outcome != nil {
		o := *r.Outcome
		if r.Outcome.Artifacts != nil {
			a := *r.Outcome.Artifacts
			o.Artifacts = &a
		}
		c.Outcome = &o
	}
	return &c
}
