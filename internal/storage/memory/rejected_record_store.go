package memory

import (
	"context"
	"sort"
	"sync"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// RejectedRecordStore is an in-memory implementation of storage.RejectedRecordStore.
// The audit trail is append-only and has no natural unique key.
type RejectedRecordStore struct {
	mu   sync.RWMutex
	data []*domain.RejectedRecord
}

// NewRejectedRecordStore creates a new in-memory rejected record store.
func NewRejectedRecordStore() *RejectedRecordStore {
	return &RejectedRecordStore{}
}

// Insert adds a rejection.
func (s *RejectedRecordStore) Insert(_ context.Context, r *domain.RejectedRecord) error {
	if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.data = append(s.data, &copy)
	return nil
}

// InsertBulk adds multiple rejections atomically.
func (s *RejectedRecordStore) InsertBulk(_ context.Context, records []*domain.RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
			return storage.ErrInvalidInput
		}
	}

	for _, r := range records {
		copy := *r
		s.data = append(s.data, &copy)
	}

	return nil
}

// GetByRunID retrieves all rejections of a batch run, ordered by (source_id, external_id).
func (s *RejectedRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.RejectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RejectedRecord
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceID != result[j].SourceID {
			return result[i].SourceID < result[j].SourceID
		}
		return result[i].ExternalID < result[j].ExternalID
	})

	return result, nil
}

// CountByReason tallies a run's rejections per taxonomy reason.
func (s *RejectedRecordStore) CountByReason(_ context.Context, runID string) (map[domain.RejectReason]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.RejectReason]int)
	for _, r := range s.data {
		if r.RunID == runID {
			counts[r.Reason]++
		}
	}

	return counts, nil
}

var _ storage.RejectedRecordStore = (*RejectedRecordStore)(nil)
