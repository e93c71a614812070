package ingestion

import (
	"context"
	"errors"
	"time"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/storage"
)

// Manager orchestrates ingestion from sources to storage.
// It enforces deterministic ordering, skips captures whose content
// fingerprint has already been ingested, and uses the storage layer for
// duplicate rejection.
type Manager struct {
	listingSource   ListingSource
	listingStore    storage.RawListingStore
	checkpointStore storage.SourceCheckpointStore
	clock           func() time.Time
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	ListingSource   ListingSource
	ListingStore    storage.RawListingStore
	CheckpointStore storage.SourceCheckpointStore
	Clock           func() time.Time
}

// NewManager creates a new ingestion manager with the provided source and stores.
func NewManager(opts ManagerOptions) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Manager{
		listingSource:   opts.ListingSource,
		listingStore:    opts.ListingStore,
		checkpointStore: opts.CheckpointStore,
		clock:           clock,
	}
}

// IngestListings fetches captures from the source and stores them.
// Enforces deterministic ordering by (timestamp_ms, source_id, external_id,
// fingerprint). Returns the count of newly stored captures and any error.
// Captures already seen are skipped; duplicates that slip past the seen set
// are rejected by the storage layer (ErrDuplicateKey).
func (m *Manager) IngestListings(ctx context.Context, sourceID string, from, to int64) (int, error) {
	if m.listingSource == nil || m.listingStore == nil {
		return 0, nil
	}

	listings, err := m.listingSource.Fetch(ctx, sourceID, from, to)
	if err != nil {
		return 0, err
	}

	if len(listings) == 0 {
		return 0, nil
	}

	return m.IngestBatch(ctx, listings)
}

// IngestBatch stamps, orders, dedupes and stores a batch of captures that has
// already been fetched. Captures may span multiple sources; each source's
// checkpoint advances to its last stored capture.
func (m *Manager) IngestBatch(ctx context.Context, listings []*domain.RawListing) (int, error) {
	if m.listingStore == nil || len(listings) == 0 {
		return 0, nil
	}

	now := m.clock().UnixMilli()
	for _, l := range listings {
		l.ListingID = idhash.ComputeListingID(l.SourceID, l.ExternalID)
		l.IngestedAt = now
	}

	// Enforce deterministic ordering
	SortListings(listings)

	fresh, err := m.filterSeen(ctx, listings)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	// Store via bulk insert - storage layer handles duplicates
	if err := m.listingStore.InsertBulk(ctx, fresh); err != nil {
		return 0, err
	}

	// Captures are stored at this point; a progress write failure must not
	// hide the count from the caller.
	if err := m.recordProgress(ctx, fresh); err != nil {
		return len(fresh), err
	}

	return len(fresh), nil
}

// ResumePoint returns the timestamp (Unix ms) to resume ingestion from for a
// source. Returns 0 when no checkpoint exists yet.
func (m *Manager) ResumePoint(ctx context.Context, sourceID string) (int64, error) {
	if m.checkpointStore == nil {
		return 0, nil
	}

	cp, err := m.checkpointStore.GetCheckpoint(ctx, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	// Fetch ranges are inclusive; skip the millisecond already ingested.
	return cp.TimestampMs + 1, nil
}

// filterSeen drops captures whose fingerprint was already ingested, including
// identical captures repeated within the batch.
func (m *Manager) filterSeen(ctx context.Context, listings []*domain.RawListing) ([]*domain.RawListing, error) {
	fresh := make([]*domain.RawListing, 0, len(listings))
	inBatch := make(map[string]bool, len(listings))

	for _, l := range listings {
		fp := idhash.ComputeContentHash(l)
		if inBatch[fp] {
			continue
		}
		inBatch[fp] = true

		if m.checkpointStore != nil {
			seen, err := m.checkpointStore.IsFingerprintSeen(ctx, fp)
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}
		}

		fresh = append(fresh, l)
	}

	return fresh, nil
}

// recordProgress marks stored fingerprints as seen and advances each source's
// checkpoint to its last capture in the batch. Requires listings to be sorted.
func (m *Manager) recordProgress(ctx context.Context, inserted []*domain.RawListing) error {
	if m.checkpointStore == nil {
		return nil
	}

	lastBySource := make(map[string]*domain.RawListing)
	for _, l := range inserted {
		if err := m.checkpointStore.MarkFingerprintSeen(ctx, idhash.ComputeContentHash(l)); err != nil {
			return err
		}
		lastBySource[l.SourceID] = l
	}

	now := m.clock().UnixMilli()
	for sourceID, last := range lastBySource {
		cp := &storage.SourceCheckpoint{
			SourceID:    sourceID,
			Cursor:      idhash.ComputeContentHash(last),
			TimestampMs: last.TimestampMs,
			UpdatedAtMs: now,
		}
		if err := m.checkpointStore.SetCheckpoint(ctx, cp); err != nil {
			return err
		}
	}

	return nil
}
