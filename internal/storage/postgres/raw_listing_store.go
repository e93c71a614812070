package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/storage"
)

// RawListingStore implements storage.RawListingStore using PostgreSQL.
type RawListingStore struct {
	pool *Pool
}

// NewRawListingStore creates a new RawListingStore.
func NewRawListingStore(pool *Pool) *RawListingStore {
	return &RawListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawListingStore = (*RawListingStore)(nil)

const rawListingInsert = `
	INSERT INTO raw_listings (
		fingerprint, listing_id, source_id, external_id,
		series_title, issue_number, grade_label, variant_label,
		sale_type, price_minor, currency, timestamp_ms, status, ingested_at_ms
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14
	)
`

const rawListingColumns = `
	listing_id, source_id, external_id,
	series_title, issue_number, grade_label, variant_label,
	sale_type, price_minor, currency, timestamp_ms, status, ingested_at_ms
`

// Insert adds a new capture. Returns ErrDuplicateKey if the fingerprint exists.
func (s *RawListingStore) Insert(ctx context.Context, l *domain.RawListing) error {
	if l == nil || l.SourceID == "" || l.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, rawListingInsert, insertArgs(l)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert raw listing: %w", err)
	}
	return nil
}

// InsertBulk adds multiple captures atomically. Fails entire batch on any duplicate.
func (s *RawListingStore) InsertBulk(ctx context.Context, listings []*domain.RawListing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, l := range listings {
		if l == nil || l.SourceID == "" || l.ExternalID == "" {
			return storage.ErrInvalidInput
		}

		_, err := tx.Exec(ctx, rawListingInsert, insertArgs(l)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert raw listing in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByFingerprint retrieves a capture by content fingerprint. Returns ErrNotFound if not exists.
func (s *RawListingStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.RawListing, error) {
	query := `SELECT ` + rawListingColumns + ` FROM raw_listings WHERE fingerprint = $1`

	row := s.pool.QueryRow(ctx, query, fingerprint)
	l, err := scanRawListing(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw listing by fingerprint: %w", err)
	}
	return l, nil
}

// GetByListingID retrieves all captures of a listing, ordered by timestamp ASC.
func (s *RawListingStore) GetByListingID(ctx context.Context, listingID string) ([]*domain.RawListing, error) {
	query := `
		SELECT ` + rawListingColumns + `
		FROM raw_listings
		WHERE listing_id = $1
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("get raw listings by listing id: %w", err)
	}
	defer rows.Close()

	return scanRawListings(rows)
}

// GetBySource retrieves all captures from a source, ordered by timestamp ASC.
func (s *RawListingStore) GetBySource(ctx context.Context, sourceID string) ([]*domain.RawListing, error) {
	query := `
		SELECT ` + rawListingColumns + `
		FROM raw_listings
		WHERE source_id = $1
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.pool.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get raw listings by source: %w", err)
	}
	defer rows.Close()

	return scanRawListings(rows)
}

// GetByTimeRange retrieves captures from a source within [start, end] (inclusive).
func (s *RawListingStore) GetByTimeRange(ctx context.Context, sourceID string, start, end int64) ([]*domain.RawListing, error) {
	query := `
		SELECT ` + rawListingColumns + `
		FROM raw_listings
		WHERE source_id = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.pool.Query(ctx, query, sourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get raw listings by time range: %w", err)
	}
	defer rows.Close()

	return scanRawListings(rows)
}

// insertArgs builds the insert argument list, computing the row fingerprint
// from the capture content.
func insertArgs(l *domain.RawListing) []any {
	return []any{
		idhash.ComputeContentHash(l), l.ListingID, l.SourceID, l.ExternalID,
		l.SeriesTitle, l.IssueNumber, l.GradeLabel, l.VariantLabel,
		l.SaleType.String(), l.PriceMinor, l.Currency, l.TimestampMs, l.Status.String(), l.IngestedAt,
	}
}

// scanRawListing scans a single row into a RawListing.
func scanRawListing(row pgx.Row) (*domain.RawListing, error) {
	var l domain.RawListing
	var saleType, status string

	err := row.Scan(
		&l.ListingID, &l.SourceID, &l.ExternalID,
		&l.SeriesTitle, &l.IssueNumber, &l.GradeLabel, &l.VariantLabel,
		&saleType, &l.PriceMinor, &l.Currency, &l.TimestampMs, &status, &l.IngestedAt,
	)
	if err != nil {
		return nil, err
	}

	l.SaleType = domain.SaleType(saleType)
	l.Status = domain.SaleStatus(status)
	return &l, nil
}

// scanRawListings scans multiple rows into a slice of RawListing.
func scanRawListings(rows pgx.Rows) ([]*domain.RawListing, error) {
	var listings []*domain.RawListing

	for rows.Next() {
		var l domain.RawListing
		var saleType, status string

		err := rows.Scan(
			&l.ListingID, &l.SourceID, &l.ExternalID,
			&l.SeriesTitle, &l.IssueNumber, &l.GradeLabel, &l.VariantLabel,
			&saleType, &l.PriceMinor, &l.Currency, &l.TimestampMs, &status, &l.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw listing row: %w", err)
		}

		l.SaleType = domain.SaleType(saleType)
		l.Status = domain.SaleStatus(status)
		listings = append(listings, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw listing rows: %w", err)
	}

	return listings, nil
}
