package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// BatchRunStore implements storage.BatchRunStore using PostgreSQL.
// The per-reason tally is stored as explicit columns; the taxonomy is closed.
type BatchRunStore struct {
	pool *Pool
}

// NewBatchRunStore creates a new BatchRunStore.
func NewBatchRunStore(pool *Pool) *BatchRunStore {
	return &BatchRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BatchRunStore = (*BatchRunStore)(nil)

const batchRunColumns = `
	run_id, started_at_ms, finished_at_ms, sources, window_from_ms, window_to_ms,
	received, accepted, rejected,
	rejected_cancelled, rejected_not_completed, rejected_implausible,
	rejected_unparsable, rejected_duplicate, rejected_outlier
`

// Insert adds a completed run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BatchRunStore) Insert(ctx context.Context, run *domain.BatchRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO batch_runs (` + batchRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.StartedAtMs, run.FinishedAtMs,
		run.Sources, run.WindowFromMs, run.WindowToMs,
		run.Received, run.Accepted, run.Rejected,
		run.RejectedByReason[domain.RejectCancelledSale],
		run.RejectedByReason[domain.RejectNotCompleted],
		run.RejectedByReason[domain.RejectImplausiblePrice],
		run.RejectedByReason[domain.RejectUnparsableIdentity],
		run.RejectedByReason[domain.RejectDuplicate],
		run.RejectedByReason[domain.RejectStatisticalOutlier],
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert batch run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BatchRunStore) GetByID(ctx context.Context, runID string) (*domain.BatchRun, error) {
	query := `SELECT ` + batchRunColumns + ` FROM batch_runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err := scanBatchRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get batch run by id: %w", err)
	}
	return run, nil
}

// GetRecent retrieves the most recent runs, ordered by started_at DESC.
func (s *BatchRunStore) GetRecent(ctx context.Context, limit int) ([]*domain.BatchRun, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + batchRunColumns + `
		FROM batch_runs
		ORDER BY started_at_ms DESC, run_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent batch runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BatchRun
	for rows.Next() {
		run, err := scanBatchRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch run rows: %w", err)
	}

	return runs, nil
}

// scanBatchRun scans a row into a BatchRun, rebuilding the reason tally map.
func scanBatchRun(row pgx.Row) (*domain.BatchRun, error) {
	var run domain.BatchRun
	var cancelled, notCompleted, implausible, unparsable, duplicate, outlier int

	err := row.Scan(
		&run.RunID, &run.StartedAtMs, &run.FinishedAtMs,
		&run.Sources, &run.WindowFromMs, &run.WindowToMs,
		&run.Received, &run.Accepted, &run.Rejected,
		&cancelled, &notCompleted, &implausible,
		&unparsable, &duplicate, &outlier,
	)
	if err != nil {
		return nil, err
	}

	run.RejectedByReason = map[domain.RejectReason]int{
		domain.RejectCancelledSale:      cancelled,
		domain.RejectNotCompleted:       notCompleted,
		domain.RejectImplausiblePrice:   implausible,
		domain.RejectUnparsableIdentity: unparsable,
		domain.RejectDuplicate:          duplicate,
		domain.RejectStatisticalOutlier: outlier,
	}
	return &run, nil
}
