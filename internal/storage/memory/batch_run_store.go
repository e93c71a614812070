package memory

import (
	"context"
	"sort"
	"sync"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// BatchRunStore is an in-memory implementation of storage.BatchRunStore.
type BatchRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BatchRun // keyed by run_id
}

// NewBatchRunStore creates a new in-memory batch run store.
func NewBatchRunStore() *BatchRunStore {
	return &BatchRunStore{
		data: make(map[string]*domain.BatchRun),
	}
}

// Insert adds a completed run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BatchRunStore) Insert(_ context.Context, run *domain.BatchRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BatchRunStore) GetByID(_ context.Context, runID string) (*domain.BatchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyRun(run), nil
}

// GetRecent retrieves the most recent runs, ordered by started_at DESC.
func (s *BatchRunStore) GetRecent(_ context.Context, limit int) ([]*domain.BatchRun, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BatchRun, 0, len(s.data))
	for _, run := range s.data {
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAtMs != result[j].StartedAtMs {
			return result[i].StartedAtMs > result[j].StartedAtMs
		}
		return result[i].RunID > result[j].RunID
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// copyRun clones a run including its source list and reason tally map.
func copyRun(run *domain.BatchRun) *domain.BatchRun {
	c := *run
	if run.Sources != nil {
		c.Sources = append([]string(nil), run.Sources...)
	}
	if run.RejectedByReason != nil {
		c.RejectedByReason = make(map[domain.RejectReason]int, len(run.RejectedByReason))
		for reason, n := range run.RejectedByReason {
			c.RejectedByReason[reason] = n
		}
	}
	return &c
}

var _ storage.BatchRunStore = (*BatchRunStore)(nil)
