package memory

import (
	"context"
	"errors"
	"testing"

	"comic-price-lab/internal/storage"
)

func TestSourceCheckpointStore_SetAndGet(t *testing.T) {
	store := NewSourceCheckpointStore()
	ctx := context.Background()

	cp := &storage.SourceCheckpoint{
		SourceID:    "ebay",
		Cursor:      "page-42",
		TimestampMs: 1704067200000,
		UpdatedAtMs: 1704067300000,
	}
	if err := store.SetCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SetCheckpoint failed: %v", err)
	}

	got, err := store.GetCheckpoint(ctx, "ebay")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if got.Cursor != "page-42" {
		t.Errorf("Cursor mismatch: got %s, want page-42", got.Cursor)
	}
}

func TestSourceCheckpointStore_Upsert(t *testing.T) {
	store := NewSourceCheckpointStore()
	ctx := context.Background()

	first := &storage.SourceCheckpoint{SourceID: "ebay", Cursor: "page-1", TimestampMs: 100}
	second := &storage.SourceCheckpoint{SourceID: "ebay", Cursor: "page-2", TimestampMs: 200}

	if err := store.SetCheckpoint(ctx, first); err != nil {
		t.Fatalf("SetCheckpoint failed: %v", err)
	}
	if err := store.SetCheckpoint(ctx, second); err != nil {
		t.Fatalf("Second SetCheckpoint failed: %v", err)
	}

	got, err := store.GetCheckpoint(ctx, "ebay")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if got.Cursor != "page-2" || got.TimestampMs != 200 {
		t.Errorf("Checkpoint not replaced: %+v", got)
	}
}

func TestSourceCheckpointStore_GetNotFound(t *testing.T) {
	store := NewSourceCheckpointStore()

	_, err := store.GetCheckpoint(context.Background(), "heritage")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSourceCheckpointStore_PerSourceIsolation(t *testing.T) {
	store := NewSourceCheckpointStore()
	ctx := context.Background()

	if err := store.SetCheckpoint(ctx, &storage.SourceCheckpoint{SourceID: "ebay", Cursor: "a"}); err != nil {
		t.Fatalf("SetCheckpoint failed: %v", err)
	}
	if err := store.SetCheckpoint(ctx, &storage.SourceCheckpoint{SourceID: "heritage", Cursor: "b"}); err != nil {
		t.Fatalf("SetCheckpoint failed: %v", err)
	}

	got, err := store.GetCheckpoint(ctx, "ebay")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if got.Cursor != "a" {
		t.Errorf("Cursor mismatch: got %s, want a", got.Cursor)
	}
}

func TestSourceCheckpointStore_FingerprintSeen(t *testing.T) {
	store := NewSourceCheckpointStore()
	ctx := context.Background()

	fp := "deadbeef"

	seen, err := store.IsFingerprintSeen(ctx, fp)
	if err != nil {
		t.Fatalf("IsFingerprintSeen failed: %v", err)
	}
	if seen {
		t.Error("Fingerprint seen before marking")
	}

	if err := store.MarkFingerprintSeen(ctx, fp); err != nil {
		t.Fatalf("MarkFingerprintSeen failed: %v", err)
	}
	// Marking twice is idempotent.
	if err := store.MarkFingerprintSeen(ctx, fp); err != nil {
		t.Fatalf("Second MarkFingerprintSeen failed: %v", err)
	}

	seen, err = store.IsFingerprintSeen(ctx, fp)
	if err != nil {
		t.Fatalf("IsFingerprintSeen failed: %v", err)
	}
	if !seen {
		t.Error("Fingerprint not seen after marking")
	}

	prints, err := store.LoadSeenFingerprints(ctx)
	if err != nil {
		t.Fatalf("LoadSeenFingerprints failed: %v", err)
	}
	if len(prints) != 1 || prints[0] != fp {
		t.Errorf("LoadSeenFingerprints = %v, want [%s]", prints, fp)
	}
}

func TestSourceCheckpointStore_InvalidInput(t *testing.T) {
	store := NewSourceCheckpointStore()
	ctx := context.Background()

	if err := store.SetCheckpoint(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil checkpoint: expected ErrInvalidInput, got %v", err)
	}
	if err := store.MarkFingerprintSeen(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty fingerprint: expected ErrInvalidInput, got %v", err)
	}
}
