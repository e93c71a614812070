// Package orchestrator provides batch run orchestration tests.
package orchestrator

import (
	"context"
	"testing"
	"time"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/reporting"
	"comic-price-lab/internal/storage/memory"
)

func TestOrchestrator_Run_EmptyWindow(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	orch := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
		Sources:       []string{"ebay"},
	})

	result, err := orch.Run(ctx, 0, 1000000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Received != 0 {
		t.Errorf("expected 0 received, got %d", result.Received)
	}
	if result.Accepted != 0 {
		t.Errorf("expected 0 accepted, got %d", result.Accepted)
	}

	// An empty window leaves no run row behind.
	runs, err := stores.runStore.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("get recent runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no persisted runs, got %d", len(runs))
	}
}

func TestOrchestrator_Run_WithCaptures(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedCaptures(t, stores.listingStore)

	orch := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
		Sources:       []string{"ebay"},
	})

	result, err := orch.Run(ctx, 0, 1000000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// lot-7 sits outside the window and must not be loaded.
	if result.Received != 6 {
		t.Errorf("expected 6 received, got %d", result.Received)
	}
	if result.Accepted != 5 {
		t.Errorf("expected 5 accepted, got %d", result.Accepted)
	}
	if result.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", result.Rejected)
	}

	run, err := stores.runStore.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get run row: %v", err)
	}
	if run.Received != 6 || run.Accepted != 5 || run.Rejected != 1 {
		t.Errorf("run row counts = %d/%d/%d, want 6/5/1",
			run.Received, run.Accepted, run.Rejected)
	}
	if len(run.Sources) != 1 || run.Sources[0] != "ebay" {
		t.Errorf("run row sources = %v, want [ebay]", run.Sources)
	}
	if run.WindowFromMs != 0 || run.WindowToMs != 1000000 {
		t.Errorf("run row window = [%d, %d], want [0, 1000000]",
			run.WindowFromMs, run.WindowToMs)
	}

	records, err := stores.recordStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get records: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 stored records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.RunID != result.RunID {
			t.Errorf("record %s has run id %q, want %q",
				rec.ExternalID, rec.RunID, result.RunID)
		}
	}

	rejected, err := stores.rejectedStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get rejected: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected 1 stored rejection, got %d", len(rejected))
	}
	if rejected[0].Reason != domain.RejectCancelledSale {
		t.Errorf("rejection reason = %s, want %s",
			rejected[0].Reason, domain.RejectCancelledSale)
	}
}

func TestOrchestrator_Run_GeneratesReport(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedCaptures(t, stores.listingStore)

	generator := reporting.NewGenerator(stores.runStore, stores.recordStore, stores.rejectedStore)

	orch := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
		Generator:     generator,
		Sources:       []string{"ebay"},
	})

	result, err := orch.Run(ctx, 0, 1000000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("expected no soft errors, got %v", result.Errors)
	}
	if result.Report == nil {
		t.Fatal("expected a report, got nil")
	}
	if result.Report.RunID != result.RunID {
		t.Errorf("report run id = %q, want %q", result.Report.RunID, result.RunID)
	}
	if result.Report.RunSummary.Received != 6 {
		t.Errorf("report received = %d, want 6", result.Report.RunSummary.Received)
	}
}

func TestOrchestrator_Run_DeterministicIdentity(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedCaptures(t, stores.listingStore)

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	orch := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
		Sources:       []string{"ebay"},
		Clock:         func() time.Time { return fixed },
		NewRunID:      func() string { return "run-fixed-001" },
	})

	result, err := orch.Run(ctx, 0, 1000000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.RunID != "run-fixed-001" {
		t.Errorf("run id = %q, want run-fixed-001", result.RunID)
	}

	run, err := stores.runStore.GetByID(ctx, "run-fixed-001")
	if err != nil {
		t.Fatalf("get run row: %v", err)
	}
	if run.StartedAtMs != fixed.UnixMilli() || run.FinishedAtMs != fixed.UnixMilli() {
		t.Errorf("run timestamps = %d/%d, want both %d",
			run.StartedAtMs, run.FinishedAtMs, fixed.UnixMilli())
	}
}

func TestOrchestrator_Run_MalformedCaptureFailsRun(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	// Currency is mandatory; a capture without one fails the whole batch.
	bad := soldListing("lot-bad", 1000, 10000)
	bad.Currency = ""
	if err := stores.listingStore.Insert(ctx, bad); err != nil {
		t.Fatalf("insert capture: %v", err)
	}

	orch := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
		Sources:       []string{"ebay"},
	})

	if _, err := orch.Run(ctx, 0, 1000000); err == nil {
		t.Fatal("expected error for malformed capture, got nil")
	}

	// A failed run persists nothing.
	runs, err := stores.runStore.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("get recent runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no persisted runs, got %d", len(runs))
	}
}

func TestOrchestrator_Run_MissingConfiguration(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	noPipeline := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Sources:       []string{"ebay"},
	})
	if _, err := noPipeline.Run(ctx, 0, 1000); err == nil {
		t.Error("expected error when pipeline is missing, got nil")
	}

	noSources := New(Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      newTestPipeline(t),
	})
	if _, err := noSources.Run(ctx, 0, 1000); err == nil {
		t.Error("expected error when no sources are configured, got nil")
	}
}

func soldListing(externalID string, ts int64, priceMinor int64) *domain.RawListing {
	return &domain.RawListing{
		SourceID:    "ebay",
		ExternalID:  externalID,
		SeriesTitle: "Amazing Spider-Man",
		IssueNumber: "#300",
		GradeLabel:  "CGC 9.8",
		SaleType:    domain.SaleTypeAuction,
		PriceMinor:  priceMinor,
		Currency:    "USD",
		TimestampMs: ts,
		Status:      domain.SaleStatusSold,
	}
}

// seedCaptures inserts five sold captures, one cancelled capture, and one
// capture outside the [0, 1000000] window.
func seedCaptures(t *testing.T, store *memory.RawListingStore) {
	t.Helper()
	ctx := context.Background()

	cancelled := soldListing("lot-6", 6000, 9700)
	cancelled.Status = domain.SaleStatusCancelled

	listings := []*domain.RawListing{
		soldListing("lot-1", 1000, 10000),
		soldListing("lot-2", 2000, 10200),
		soldListing("lot-3", 3000, 9800),
		soldListing("lot-4", 4000, 10100),
		soldListing("lot-5", 5000, 9900),
		cancelled,
		soldListing("lot-7", 2000000, 9900),
	}
	if err := store.InsertBulk(ctx, listings); err != nil {
		t.Fatalf("insert captures: %v", err)
	}
}

func newTestPipeline(t *testing.T) *engine.Pipeline {
	t.Helper()
	p, err := engine.NewPipeline(engine.DefaultConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

// testStores holds all memory stores for testing.
type testStores struct {
	listingStore  *memory.RawListingStore
	recordStore   *memory.NormalizedRecordStore
	rejectedStore *memory.RejectedRecordStore
	runStore      *memory.BatchRunStore
}

func createTestStores() *testStores {
	return &testStores{
		listingStore:  memory.NewRawListingStore(),
		recordStore:   memory.NewNormalizedRecordStore(),
		rejectedStore: memory.NewRejectedRecordStore(),
		runStore:      memory.NewBatchRunStore(),
	}
}
