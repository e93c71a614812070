package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/storage/memory"
)

const testRunID = "run-1"

func acceptedRecord(externalID string, priceMinor int64, confidence float64) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		RunID:      testRunID,
		SourceID:   "ebay",
		ExternalID: externalID,
		Variant: domain.VariantKey{
			Series: "amazing spider-man",
			Issue:  "300",
			Class:  domain.VariantStandard,
		},
		Grade:              domain.CanonicalGrade{Value: 9.8},
		AdjustedPriceMinor: priceMinor,
		Currency:           "USD",
		SaleType:           domain.SaleTypeAuction,
		TimestampMs:        1704067200000,
		Confidence:         confidence,
	}
}

func setupTestData(t *testing.T) (*memory.BatchRunStore, *memory.NormalizedRecordStore, *memory.RejectedRecordStore) {
	t.Helper()
	ctx := context.Background()

	runStore := memory.NewBatchRunStore()
	recordStore := memory.NewNormalizedRecordStore()
	rejectedStore := memory.NewRejectedRecordStore()

	run := &domain.BatchRun{
		RunID:        testRunID,
		StartedAtMs:  1000,
		FinishedAtMs: 3000,
		Received:     10,
		Accepted:     6,
		Rejected:     4,
		RejectedByReason: map[domain.RejectReason]int{
			domain.RejectUnparsableIdentity: 2,
			domain.RejectDuplicate:          1,
			domain.RejectStatisticalOutlier: 1,
		},
	}
	if err := runStore.Insert(ctx, run); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}

	// One qualified cohort of 5 plus a single restored record
	records := []*domain.NormalizedRecord{
		acceptedRecord("lot-1", 10000, 1.0),
		acceptedRecord("lot-2", 10200, 0.9),
		acceptedRecord("lot-3", 9800, 0.8),
		acceptedRecord("lot-4", 10100, 0.95),
		acceptedRecord("lot-5", 9900, 1.0),
	}
	restored := acceptedRecord("lot-6", 5000, 0.5)
	restored.SourceID = "heritage"
	restored.Grade = domain.CanonicalGrade{Value: 9.4, Qualifier: domain.QualifierRestored}
	records = append(records, restored)

	if err := recordStore.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk records failed: %v", err)
	}

	rejected := []*domain.RejectedRecord{
		{RunID: testRunID, SourceID: "ebay", ExternalID: "bad-1", Reason: domain.RejectUnparsableIdentity, Detail: "grade label \"MAYBE FINE\" not recognized"},
		{RunID: testRunID, SourceID: "ebay", ExternalID: "bad-2", Reason: domain.RejectUnparsableIdentity, Detail: "missing series title"},
		{RunID: testRunID, SourceID: "ebay", ExternalID: "dup-1", Reason: domain.RejectDuplicate, Detail: "superseded by later capture"},
		{RunID: testRunID, SourceID: "ebay", ExternalID: "out-1", Reason: domain.RejectStatisticalOutlier, Detail: "modified z-score 2203.0 exceeds 3.5"},
	}
	if err := rejectedStore.InsertBulk(ctx, rejected); err != nil {
		t.Fatalf("InsertBulk rejected failed: %v", err)
	}

	return runStore, recordStore, rejectedStore
}

func TestGenerate_RunSummary(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	s := report.RunSummary
	if s.Received != 10 || s.Accepted != 6 || s.Rejected != 4 {
		t.Errorf("Counts mismatch: got (%d, %d, %d)", s.Received, s.Accepted, s.Rejected)
	}
	if s.ParseRate != 0.6 {
		t.Errorf("ParseRate = %v, want 0.6", s.ParseRate)
	}
	if s.DurationMs != 2000 {
		t.Errorf("DurationMs = %d, want 2000", s.DurationMs)
	}
	if s.Sources != 2 {
		t.Errorf("Sources = %d, want 2", s.Sources)
	}
}

func TestGenerate_RejectionBreakdown(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Rejections) != len(domain.AllRejectReasons) {
		t.Fatalf("Expected %d taxonomy rows, got %d", len(domain.AllRejectReasons), len(report.Rejections))
	}

	byReason := make(map[domain.RejectReason]RejectionReasonRow)
	for _, row := range report.Rejections {
		byReason[row.Reason] = row
	}

	if row := byReason[domain.RejectUnparsableIdentity]; row.Count != 2 || row.Share != 0.5 {
		t.Errorf("UNPARSABLE_IDENTITY row = %+v, want count 2 share 0.5", row)
	}
	if row := byReason[domain.RejectCancelledSale]; row.Count != 0 || row.Share != 0 {
		t.Errorf("CANCELLED_SALE row = %+v, want zero row", row)
	}
}

func TestGenerate_ConfidenceDistribution(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	c := report.Confidence
	if c.Count != 6 {
		t.Fatalf("Confidence count = %d, want 6", c.Count)
	}
	if c.Min != 0.5 || c.Max != 1.0 {
		t.Errorf("Confidence range = [%v, %v], want [0.5, 1.0]", c.Min, c.Max)
	}
	// (1.0 + 0.9 + 0.8 + 0.95 + 1.0 + 0.5) / 6
	wantMean := 5.15 / 6
	if diff := c.Mean - wantMean; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence mean = %v, want %v", c.Mean, wantMean)
	}
	if c.Median < 0.8 || c.Median > 1.0 {
		t.Errorf("Confidence median = %v out of expected band", c.Median)
	}
}

func TestGenerate_Cohorts(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Cohorts) != 2 {
		t.Fatalf("Expected 2 cohorts, got %d", len(report.Cohorts))
	}

	// Sorted by grade within the same series/issue/class: 9.4 restored first
	restored := report.Cohorts[0]
	if restored.Grade != 9.4 || restored.Qualifier != domain.QualifierRestored {
		t.Errorf("First cohort = %+v, want restored 9.4", restored)
	}
	if restored.Qualified {
		t.Error("Single restored record must not count as qualified cohort")
	}

	main := report.Cohorts[1]
	if main.Records != 5 {
		t.Errorf("Main cohort records = %d, want 5", main.Records)
	}
	if main.MedianPriceMinor != 10000 {
		t.Errorf("Main cohort median = %d, want 10000", main.MedianPriceMinor)
	}
	if main.MinPriceMinor != 9800 || main.MaxPriceMinor != 10200 {
		t.Errorf("Main cohort range = [%d, %d], want [9800, 10200]", main.MinPriceMinor, main.MaxPriceMinor)
	}
	if !main.Qualified {
		t.Error("Cohort of 5 unqualified-grade records should be qualified")
	}
}

func TestGenerate_QualityGatePasses(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.QualityGate.Verdict != VerdictPass {
		t.Errorf("Verdict = %s, want PASS; criteria: %+v", report.QualityGate.Verdict, report.QualityGate.Criteria)
	}
	if len(report.QualityGate.Criteria) != 5 {
		t.Errorf("Expected 5 criteria, got %d", len(report.QualityGate.Criteria))
	}
}

func TestGenerate_UnknownRun(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	_, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, "no-such-run")
	if err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()

	// Fixed time for deterministic output
	fixedTime := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	// Run multiple times and verify same output
	var firstReport *Report
	for run := 0; run < 5; run++ {
		runStore, recordStore, rejectedStore := setupTestData(t)
		generator := NewGenerator(runStore, recordStore, rejectedStore).WithClock(fixedClock)

		report, err := generator.Generate(ctx, testRunID)
		if err != nil {
			t.Fatalf("Run %d: Generate failed: %v", run, err)
		}

		if firstReport == nil {
			firstReport = report
			continue
		}

		if !report.GeneratedAt.Equal(firstReport.GeneratedAt) {
			t.Errorf("Run %d: GeneratedAt mismatch", run)
		}
		if report.RunSummary != firstReport.RunSummary {
			t.Errorf("Run %d: RunSummary mismatch", run)
		}
		if len(report.Cohorts) != len(firstReport.Cohorts) {
			t.Fatalf("Run %d: Cohorts length mismatch", run)
		}
		for i := range report.Cohorts {
			if report.Cohorts[i] != firstReport.Cohorts[i] {
				t.Errorf("Run %d: Cohorts[%d] mismatch: got %+v, want %+v",
					run, i, report.Cohorts[i], firstReport.Cohorts[i])
			}
		}
		if report.QualityGate.Verdict != firstReport.QualityGate.Verdict {
			t.Errorf("Run %d: Verdict mismatch", run)
		}
	}
}

func TestGenerate_WithClock(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	fixedTime := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	generator := NewGenerator(runStore, recordStore, rejectedStore).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	ctx := context.Background()
	runStore, recordStore, rejectedStore := setupTestData(t)

	report, err := NewGenerator(runStore, recordStore, rejectedStore).Generate(ctx, testRunID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)

	// Verify required sections are in markdown
	requiredSections := []string{
		"# Batch Run Report",
		"## Run Summary",
		"## Rejections",
		"## Confidence Distribution",
		"## Cohorts",
		"## Quality Gate",
		"**Verdict: PASS**",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing section %q", section)
		}
	}

	if !strings.Contains(md, "UNPARSABLE_IDENTITY | 2") {
		t.Error("Markdown missing taxonomy row")
	}
}

func TestRenderAcceptedCSV(t *testing.T) {
	records := []*domain.NormalizedRecord{
		acceptedRecord("lot-1", 10000, 1.0),
	}

	csv := RenderAcceptedCSV(records)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,source_id,external_id,listing_ref") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "amazing spider-man") || !strings.Contains(lines[1], "10000") {
		t.Errorf("Unexpected row: %s", lines[1])
	}

	ref := idhash.ShortID(idhash.ComputeListingID("ebay", "lot-1"))
	if !strings.Contains(lines[1], ref) {
		t.Errorf("Row missing listing ref %q: %s", ref, lines[1])
	}
}

func TestRenderRejectedCSV_QuotesFreeText(t *testing.T) {
	records := []*domain.RejectedRecord{
		{RunID: testRunID, SourceID: "ebay", ExternalID: "bad-1",
			Reason: domain.RejectImplausiblePrice, Detail: `price 0, below floor "100"`},
	}

	csv := RenderRejectedCSV(records)

	if !strings.Contains(csv, `"price 0, below floor ""100"""`) {
		t.Errorf("Detail not quoted per RFC 4180: %s", csv)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	cases := []struct {
		p    float64
		want float64
	}{
		{0.0, 1},
		{0.25, 2},
		{0.50, 3},
		{0.75, 4},
		{1.0, 5},
		{0.10, 1.4},
	}

	for _, tc := range cases {
		got := computePercentile(sorted, tc.p)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}

	if got := computePercentile(nil, 0.5); got != 0 {
		t.Errorf("Empty slice percentile = %v, want 0", got)
	}
	if got := computePercentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("Single element percentile = %v, want 7", got)
	}
}
