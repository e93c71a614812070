package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

func testRejection(runID, externalID string, reason domain.RejectReason) *domain.RejectedRecord {
	return &domain.RejectedRecord{
		RunID:      runID,
		SourceID:   "ebay",
		ExternalID: externalID,
		Reason:     reason,
		Detail:     "price 0 below floor 100",
	}
}

func TestRejectedRecordStore_InsertAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRejectedRecordStore(pool)

	require.NoError(t, store.Insert(ctx, testRejection("run-1", "lot-2", domain.RejectCancelledSale)))
	require.NoError(t, store.Insert(ctx, testRejection("run-1", "lot-1", domain.RejectDuplicate)))
	require.NoError(t, store.Insert(ctx, testRejection("run-2", "lot-3", domain.RejectNotCompleted)))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "lot-1", got[0].ExternalID)
	assert.Equal(t, domain.RejectDuplicate, got[0].Reason)
	assert.Equal(t, "lot-2", got[1].ExternalID)
	assert.Equal(t, "price 0 below floor 100", got[1].Detail)
}

func TestRejectedRecordStore_RepeatRejectionsAllowed(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRejectedRecordStore(pool)

	// Two captures of one listing can both reject in the same run.
	r := testRejection("run-1", "lot-1", domain.RejectDuplicate)
	require.NoError(t, store.Insert(ctx, r))
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRejectedRecordStore_InsertBulkAndCountByReason(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRejectedRecordStore(pool)

	records := []*domain.RejectedRecord{
		testRejection("run-1", "lot-1", domain.RejectDuplicate),
		testRejection("run-1", "lot-2", domain.RejectDuplicate),
		testRejection("run-1", "lot-3", domain.RejectStatisticalOutlier),
		testRejection("run-2", "lot-4", domain.RejectCancelledSale),
	}
	require.NoError(t, store.InsertBulk(ctx, records))

	counts, err := store.CountByReason(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 2, counts[domain.RejectDuplicate])
	assert.Equal(t, 1, counts[domain.RejectStatisticalOutlier])
	assert.Zero(t, counts[domain.RejectCancelledSale])
}

func TestRejectedRecordStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRejectedRecordStore(pool)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)

	blank := testRejection("", "lot-1", domain.RejectDuplicate)
	assert.ErrorIs(t, store.Insert(ctx, blank), storage.ErrInvalidInput)
}
