package clickhouse

import (
	"context"
	"fmt"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// NormalizedRecordStore implements storage.NormalizedRecordStore using ClickHouse.
type NormalizedRecordStore struct {
	conn *Conn
}

// NewNormalizedRecordStore creates a new NormalizedRecordStore.
func NewNormalizedRecordStore(conn *Conn) *NormalizedRecordStore {
	return &NormalizedRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.NormalizedRecordStore = (*NormalizedRecordStore)(nil)

const normalizedRecordColumns = `
	run_id, source_id, external_id,
	series, issue, variant_class, grade_value, grade_qualifier,
	adjusted_price_minor, currency, sale_type, timestamp_ms, confidence
`

// InsertBulk adds multiple records. Fails entire batch on duplicate (run_id, source_id, external_id).
func (s *NormalizedRecordStore) InsertBulk(ctx context.Context, records []*domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID      string
		sourceID   string
		externalID string
	}
	seen := make(map[key]struct{})
	for _, r := range records {
		if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.RunID, r.SourceID, r.ExternalID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; check against existing rows.
	for _, r := range records {
		exists, err := s.exists(ctx, r.RunID, r.SourceID, r.ExternalID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO normalized_records (`+normalizedRecordColumns+`)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RunID, r.SourceID, r.ExternalID,
			r.Variant.Series, r.Variant.Issue, r.Variant.Class.String(),
			r.Grade.Value, r.Grade.Qualifier.String(),
			r.AdjustedPriceMinor, r.Currency, r.SaleType.String(),
			uint64(r.TimestampMs), r.Confidence,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all records of a batch run, ordered by timestamp ASC.
func (s *NormalizedRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.NormalizedRecord, error) {
	query := `
		SELECT ` + normalizedRecordColumns + `
		FROM normalized_records
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanNormalizedRecords(rows)
}

// GetByVariant retrieves all records of a market instrument, ordered by timestamp ASC.
func (s *NormalizedRecordStore) GetByVariant(ctx context.Context, key domain.VariantKey) ([]*domain.NormalizedRecord, error) {
	query := `
		SELECT ` + normalizedRecordColumns + `
		FROM normalized_records
		WHERE series = ? AND issue = ? AND variant_class = ?
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.conn.Query(ctx, query, key.Series, key.Issue, key.Class.String())
	if err != nil {
		return nil, fmt.Errorf("query by variant: %w", err)
	}
	defer rows.Close()

	return scanNormalizedRecords(rows)
}

// GetByTimeRange retrieves records of an instrument within [start, end] (inclusive).
func (s *NormalizedRecordStore) GetByTimeRange(ctx context.Context, key domain.VariantKey, start, end int64) ([]*domain.NormalizedRecord, error) {
	query := `
		SELECT ` + normalizedRecordColumns + `
		FROM normalized_records
		WHERE series = ? AND issue = ? AND variant_class = ?
		  AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, external_id ASC
	`

	rows, err := s.conn.Query(ctx, query,
		key.Series, key.Issue, key.Class.String(), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanNormalizedRecords(rows)
}

// exists checks if a record with the given key is already stored.
func (s *NormalizedRecordStore) exists(ctx context.Context, runID, sourceID, externalID string) (bool, error) {
	query := `
		SELECT count(*) FROM normalized_records
		WHERE run_id = ? AND source_id = ? AND external_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, sourceID, externalID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanNormalizedRecords scans multiple rows into a slice.
func scanNormalizedRecords(rows chRows) ([]*domain.NormalizedRecord, error) {
	var records []*domain.NormalizedRecord

	for rows.Next() {
		var r domain.NormalizedRecord
		var variantClass, qualifier, saleType string
		var timestampMs uint64

		err := rows.Scan(
			&r.RunID, &r.SourceID, &r.ExternalID,
			&r.Variant.Series, &r.Variant.Issue, &variantClass,
			&r.Grade.Value, &qualifier,
			&r.AdjustedPriceMinor, &r.Currency, &saleType,
			&timestampMs, &r.Confidence,
		)
		if err != nil {
			return nil, fmt.Errorf("scan normalized record row: %w", err)
		}

		r.Variant.Class = domain.VariantClass(variantClass)
		r.Grade.Qualifier = domain.GradeQualifier(qualifier)
		r.SaleType = domain.SaleType(saleType)
		r.TimestampMs = int64(timestampMs)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate normalized record rows: %w", err)
	}

	return records, nil
}
