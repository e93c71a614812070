package storage

import (
	"context"

	"comic-price-lab/internal/domain"
)

// RawListingStore provides access to raw_listings storage. Rows are keyed by
// content fingerprint: re-captures of the same marketplace listing with
// changed content are separate rows sharing a listing_id.
type RawListingStore interface {
	// Insert adds a new capture. Returns ErrDuplicateKey if the fingerprint exists.
	Insert(ctx context.Context, l *domain.RawListing) error

	// InsertBulk adds multiple captures atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, listings []*domain.RawListing) error

	// GetByFingerprint retrieves a capture by content fingerprint. Returns ErrNotFound if not exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.RawListing, error)

	// GetByListingID retrieves all captures of a listing, ordered by timestamp ASC.
	GetByListingID(ctx context.Context, listingID string) ([]*domain.RawListing, error)

	// GetBySource retrieves all captures from a source, ordered by timestamp ASC.
	GetBySource(ctx context.Context, sourceID string) ([]*domain.RawListing, error)

	// GetByTimeRange retrieves captures from a source within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, sourceID string, start, end int64) ([]*domain.RawListing, error)
}

// NormalizedRecordStore provides access to normalized_records storage.
type NormalizedRecordStore interface {
	// InsertBulk adds multiple records. Fails entire batch on duplicate (run_id, source_id, external_id).
	InsertBulk(ctx context.Context, records []*domain.NormalizedRecord) error

	// GetByRunID retrieves all records of a batch run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.NormalizedRecord, error)

	// GetByVariant retrieves all records of a market instrument, ordered by timestamp ASC.
	GetByVariant(ctx context.Context, key domain.VariantKey) ([]*domain.NormalizedRecord, error)

	// GetByTimeRange retrieves records of an instrument within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, key domain.VariantKey, start, end int64) ([]*domain.NormalizedRecord, error)
}

// RejectedRecordStore provides access to rejected_records storage. The table
// is an append-only audit trail; one listing can reject more than once across
// captures, so rows carry no natural unique key.
type RejectedRecordStore interface {
	// Insert adds a rejection.
	Insert(ctx context.Context, r *domain.RejectedRecord) error

	// InsertBulk adds multiple rejections atomically.
	InsertBulk(ctx context.Context, records []*domain.RejectedRecord) error

	// GetByRunID retrieves all rejections of a batch run, ordered by (source_id, external_id).
	GetByRunID(ctx context.Context, runID string) ([]*domain.RejectedRecord, error)

	// CountByReason tallies a run's rejections per taxonomy reason.
	CountByReason(ctx context.Context, runID string) (map[domain.RejectReason]int, error)
}

// BatchRunStore provides access to batch_runs storage.
type BatchRunStore interface {
	// Insert adds a completed run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BatchRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BatchRun, error)

	// GetRecent retrieves the most recent runs, ordered by started_at DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.BatchRun, error)
}
