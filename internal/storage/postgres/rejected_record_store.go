package postgres

import (
	"context"
	"fmt"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// RejectedRecordStore implements storage.RejectedRecordStore using PostgreSQL.
// Rows are append-only audit entries with a surrogate key.
type RejectedRecordStore struct {
	pool *Pool
}

// NewRejectedRecordStore creates a new RejectedRecordStore.
func NewRejectedRecordStore(pool *Pool) *RejectedRecordStore {
	return &RejectedRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RejectedRecordStore = (*RejectedRecordStore)(nil)

const rejectedRecordInsert = `
	INSERT INTO rejected_records (run_id, source_id, external_id, reason, detail)
	VALUES ($1, $2, $3, $4, $5)
`

// Insert adds a rejection.
func (s *RejectedRecordStore) Insert(ctx context.Context, r *domain.RejectedRecord) error {
	if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, rejectedRecordInsert,
		r.RunID, r.SourceID, r.ExternalID, r.Reason.String(), r.Detail)
	if err != nil {
		return fmt.Errorf("insert rejected record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple rejections atomically.
func (s *RejectedRecordStore) InsertBulk(ctx context.Context, records []*domain.RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if r == nil || r.RunID == "" || r.SourceID == "" || r.ExternalID == "" {
			return storage.ErrInvalidInput
		}

		_, err := tx.Exec(ctx, rejectedRecordInsert,
			r.RunID, r.SourceID, r.ExternalID, r.Reason.String(), r.Detail)
		if err != nil {
			return fmt.Errorf("insert rejected record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all rejections of a batch run, ordered by (source_id, external_id).
func (s *RejectedRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.RejectedRecord, error) {
	query := `
		SELECT run_id, source_id, external_id, reason, detail
		FROM rejected_records
		WHERE run_id = $1
		ORDER BY source_id ASC, external_id ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get rejected records by run id: %w", err)
	}
	defer rows.Close()

	var records []*domain.RejectedRecord
	for rows.Next() {
		var r domain.RejectedRecord
		var reason string

		if err := rows.Scan(&r.RunID, &r.SourceID, &r.ExternalID, &reason, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan rejected record row: %w", err)
		}

		r.Reason = domain.RejectReason(reason)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejected record rows: %w", err)
	}

	return records, nil
}

// CountByReason tallies a run's rejections per taxonomy reason.
func (s *RejectedRecordStore) CountByReason(ctx context.Context, runID string) (map[domain.RejectReason]int, error) {
	query := `
		SELECT reason, COUNT(*)
		FROM rejected_records
		WHERE run_id = $1
		GROUP BY reason
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("count rejected records by reason: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RejectReason]int)
	for rows.Next() {
		var reason string
		var n int

		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan reason count row: %w", err)
		}

		counts[domain.RejectReason(reason)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reason count rows: %w", err)
	}

	return counts, nil
}
