package memory

import (
	"context"
	"sort"
	"sync"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/storage"
)

// RawListingStore is an in-memory implementation of storage.RawListingStore.
type RawListingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawListing // keyed by content fingerprint
}

// NewRawListingStore creates a new in-memory raw listing store.
func NewRawListingStore() *RawListingStore {
	return &RawListingStore{
		data: make(map[string]*domain.RawListing),
	}
}

// Insert adds a new capture. Returns ErrDuplicateKey if the fingerprint exists.
func (s *RawListingStore) Insert(_ context.Context, l *domain.RawListing) error {
	if l == nil || l.SourceID == "" || l.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fp := idhash.ComputeContentHash(l)
	if _, exists := s.data[fp]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *l
	s.data[fp] = &copy
	return nil
}

// InsertBulk adds multiple captures atomically. Fails entire batch on any duplicate.
func (s *RawListingStore) InsertBulk(_ context.Context, listings []*domain.RawListing) error {
	if len(listings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track fingerprints in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(listings))

	// First pass: check for duplicates (existing + intra-batch)
	fps := make([]string, len(listings))
	for i, l := range listings {
		if l == nil || l.SourceID == "" || l.ExternalID == "" {
			return storage.ErrInvalidInput
		}

		fp := idhash.ComputeContentHash(l)
		if _, exists := s.data[fp]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[fp]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[fp] = struct{}{}
		fps[i] = fp
	}

	// Second pass: insert all
	for i, l := range listings {
		copy := *l
		s.data[fps[i]] = &copy
	}

	return nil
}

// GetByFingerprint retrieves a capture by content fingerprint. Returns ErrNotFound if not exists.
func (s *RawListingStore) GetByFingerprint(_ context.Context, fingerprint string) (*domain.RawListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[fingerprint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *l
	return &copy, nil
}

// GetByListingID retrieves all captures of a listing, ordered by timestamp ASC.
func (s *RawListingStore) GetByListingID(_ context.Context, listingID string) ([]*domain.RawListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawListing
	for _, l := range s.data {
		if l.ListingID == listingID {
			copy := *l
			result = append(result, &copy)
		}
	}

	sortListings(result)
	return result, nil
}

// GetBySource retrieves all captures from a source, ordered by timestamp ASC.
func (s *RawListingStore) GetBySource(_ context.Context, sourceID string) ([]*domain.RawListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawListing
	for _, l := range s.data {
		if l.SourceID == sourceID {
			copy := *l
			result = append(result, &copy)
		}
	}

	sortListings(result)
	return result, nil
}

// GetByTimeRange retrieves captures from a source within [start, end] (inclusive).
func (s *RawListingStore) GetByTimeRange(_ context.Context, sourceID string, start, end int64) ([]*domain.RawListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawListing
	for _, l := range s.data {
		if l.SourceID == sourceID && l.TimestampMs >= start && l.TimestampMs <= end {
			copy := *l
			result = append(result, &copy)
		}
	}

	sortListings(result)
	return result, nil
}

// sortListings orders by timestamp ASC with external_id as a stable tiebreak,
// matching the SQL store ordering.
func sortListings(listings []*domain.RawListing) {
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].TimestampMs != listings[j].TimestampMs {
			return listings[i].TimestampMs < listings[j].TimestampMs
		}
		return listings[i].ExternalID < listings[j].ExternalID
	})
}

var _ storage.RawListingStore = (*RawListingStore)(nil)
