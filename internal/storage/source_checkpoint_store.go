package storage

import "context"

// SourceCheckpoint represents the last ingested position within one
// marketplace source.
type SourceCheckpoint struct {
	SourceID    string // marketplace identifier
	Cursor      string // source-specific resume token (page token, last lot id)
	TimestampMs int64  // capture time of the last ingested listing (ms)
	UpdatedAtMs int64  // checkpoint write time (ms)
}

// SourceCheckpointStore provides persistence for ingestion state.
// This enables resumption after restarts without recollecting or duplicating captures.
type SourceCheckpointStore interface {
	// GetCheckpoint returns the last ingested position for a source.
	// Returns ErrNotFound if no checkpoint has been saved yet.
	GetCheckpoint(ctx context.Context, sourceID string) (*SourceCheckpoint, error)

	// SetCheckpoint saves the last ingested position for a source.
	SetCheckpoint(ctx context.Context, cp *SourceCheckpoint) error

	// IsFingerprintSeen checks if a capture fingerprint has been ingested.
	IsFingerprintSeen(ctx context.Context, fingerprint string) (bool, error)

	// MarkFingerprintSeen records that a capture fingerprint has been ingested.
	MarkFingerprintSeen(ctx context.Context, fingerprint string) error

	// LoadSeenFingerprints returns all seen fingerprints (for warming the in-memory cache).
	LoadSeenFingerprints(ctx context.Context) ([]string, error)
}
