package memory

import (
	"context"
	"sync"

	"comic-price-lab/internal/storage"
)

// SourceCheckpointStore is an in-memory implementation of storage.SourceCheckpointStore.
type SourceCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*storage.SourceCheckpoint // keyed by source_id
	seenPrints  map[string]bool
}

// NewSourceCheckpointStore creates a new in-memory source checkpoint store.
func NewSourceCheckpointStore() *SourceCheckpointStore {
	return &SourceCheckpointStore{
		checkpoints: make(map[string]*storage.SourceCheckpoint),
		seenPrints:  make(map[string]bool),
	}
}

// GetCheckpoint returns the last ingested position for a source.
func (s *SourceCheckpointStore) GetCheckpoint(_ context.Context, sourceID string) (*storage.SourceCheckpoint, error) {
	if sourceID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, exists := s.checkpoints[sourceID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *cp
	return &copy, nil
}

// SetCheckpoint saves the last ingested position for a source.
func (s *SourceCheckpointStore) SetCheckpoint(_ context.Context, cp *storage.SourceCheckpoint) error {
	if cp == nil || cp.SourceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *cp
	s.checkpoints[cp.SourceID] = &copy
	return nil
}

// IsFingerprintSeen checks if a capture fingerprint has been ingested.
func (s *SourceCheckpointStore) IsFingerprintSeen(_ context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seenPrints[fingerprint], nil
}

// MarkFingerprintSeen records that a capture fingerprint has been ingested.
func (s *SourceCheckpointStore) MarkFingerprintSeen(_ context.Context, fingerprint string) error {
	if fingerprint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seenPrints[fingerprint] = true
	return nil
}

// LoadSeenFingerprints returns all seen fingerprints.
func (s *SourceCheckpointStore) LoadSeenFingerprints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prints := make([]string, 0, len(s.seenPrints))
	for fp := range s.seenPrints {
		prints = append(prints, fp)
	}
	return prints, nil
}

var _ storage.SourceCheckpointStore = (*SourceCheckpointStore)(nil)
