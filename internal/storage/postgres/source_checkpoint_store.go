package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"comic-price-lab/internal/storage"
)

// SourceCheckpointStore is a PostgreSQL implementation of storage.SourceCheckpointStore.
// Uses two tables:
//   - source_checkpoints: one row per source with the resume position
//   - seen_fingerprints: set of ingested capture fingerprints
type SourceCheckpointStore struct {
	pool *Pool
}

// NewSourceCheckpointStore creates a new PostgreSQL source checkpoint store.
func NewSourceCheckpointStore(pool *Pool) *SourceCheckpointStore {
	return &SourceCheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SourceCheckpointStore = (*SourceCheckpointStore)(nil)

// GetCheckpoint returns the last ingested position for a source.
func (s *SourceCheckpointStore) GetCheckpoint(ctx context.Context, sourceID string) (*storage.SourceCheckpoint, error) {
	if sourceID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT source_id, resume_cursor, timestamp_ms, updated_at_ms
		FROM source_checkpoints
		WHERE source_id = $1
	`, sourceID)

	var cp storage.SourceCheckpoint
	err := row.Scan(&cp.SourceID, &cp.Cursor, &cp.TimestampMs, &cp.UpdatedAtMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &cp, nil
}

// SetCheckpoint saves the last ingested position for a source.
// Uses upsert to handle initial insert and subsequent updates.
func (s *SourceCheckpointStore) SetCheckpoint(ctx context.Context, cp *storage.SourceCheckpoint) error {
	if cp == nil || cp.SourceID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_checkpoints (source_id, resume_cursor, timestamp_ms, updated_at_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id) DO UPDATE
		SET resume_cursor = EXCLUDED.resume_cursor,
		    timestamp_ms = EXCLUDED.timestamp_ms,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`, cp.SourceID, cp.Cursor, cp.TimestampMs, cp.UpdatedAtMs)

	return err
}

// IsFingerprintSeen checks if a capture fingerprint has been ingested.
func (s *SourceCheckpointStore) IsFingerprintSeen(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM seen_fingerprints WHERE fingerprint = $1)
	`, fingerprint)

	var exists bool
	err := row.Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// MarkFingerprintSeen records that a capture fingerprint has been ingested.
func (s *SourceCheckpointStore) MarkFingerprintSeen(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO seen_fingerprints (fingerprint, seen_at)
		VALUES ($1, NOW())
		ON CONFLICT (fingerprint) DO NOTHING
	`, fingerprint)

	return err
}

// LoadSeenFingerprints returns all seen fingerprints.
func (s *SourceCheckpointStore) LoadSeenFingerprints(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fingerprint FROM seen_fingerprints
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prints []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		prints = append(prints, fp)
	}

	return prints, rows.Err()
}
