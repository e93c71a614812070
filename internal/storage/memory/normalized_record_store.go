package memory

import (
	"context"
	"sort"
	"sync"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// NormalizedRecordStore is an in-memory implementation of storage.NormalizedRecordStore.
type NormalizedRecordStore struct {
	mu   sync.RWMutex
	data map[recordKey]*domain.NormalizedRecord
}

type recordKey struct {
	runID      string
	sourceID   string
	externalID string
}

// NewNormalizedRecordStore creates a new in-memory normalized record store.
func NewNormalizedRecordStore() *NormalizedRecordStore {
	return &NormalizedRecordStore{
		data: make(map[recordKey]*domain.NormalizedRecord),
	}
}

// InsertBulk adds multiple records. Fails entire batch on duplicate (run_id, source_id, external_id).
func (s *NormalizedRecordStore) InsertBulk(_ context.Context, records []*domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[recordKey]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
			return storage.ErrInvalidInput
		}

		k := recordKey{r.RunID, r.SourceID, r.ExternalID}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[recordKey{r.RunID, r.SourceID, r.ExternalID}] = &copy
	}

	return nil
}

// GetByRunID retrieves all records of a batch run, ordered by timestamp ASC.
func (s *NormalizedRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.NormalizedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedRecord
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortRecords(result)
	return result, nil
}

// GetByVariant retrieves all records of a market instrument, ordered by timestamp ASC.
func (s *NormalizedRecordStore) GetByVariant(_ context.Context, key domain.VariantKey) ([]*domain.NormalizedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedRecord
	for _, r := range s.data {
		if r.Variant == key {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortRecords(result)
	return result, nil
}

// GetByTimeRange retrieves records of an instrument within [start, end] (inclusive).
func (s *NormalizedRecordStore) GetByTimeRange(_ context.Context, key domain.VariantKey, start, end int64) ([]*domain.NormalizedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedRecord
	for _, r := range s.data {
		if r.Variant == key && r.TimestampMs >= start && r.TimestampMs <= end {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortRecords(result)
	return result, nil
}

// sortRecords orders by timestamp ASC with external_id as a stable tiebreak,
// matching the ClickHouse store ordering.
func sortRecords(records []*domain.NormalizedRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].TimestampMs != records[j].TimestampMs {
			return records[i].TimestampMs < records[j].TimestampMs
		}
		return records[i].ExternalID < records[j].ExternalID
	})
}

var _ storage.NormalizedRecordStore = (*NormalizedRecordStore)(nil)
