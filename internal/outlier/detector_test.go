package outlier

import (
	"fmt"
	"math"
	"testing"

	"comic-price-lab/internal/domain"
)

func testCohortKey() CohortKey {
	return CohortKey{
		Variant: domain.VariantKey{
			Series: "amazing spider man",
			Issue:  "300",
			Class:  domain.VariantStandard,
		},
		GradeValue: 9.8,
		Currency:   "USD",
	}
}

func testConfig() Config {
	return Config{KFactor: 3.5, MinCohortSize: 5}
}

func membersFromPrices(key CohortKey, prices []int64) []Member {
	members := make([]Member, len(prices))
	for i, p := range prices {
		members[i] = Member{
			Cohort:      key,
			Fingerprint: fmt.Sprintf("fp-%03d", i),
			PriceMinor:  p,
			TimestampMs: 1704067200000 + int64(i)*1000,
		}
	}
	return members
}

func TestEvaluate_RejectsGrossOutlier(t *testing.T) {
	key := testCohortKey()
	prices := []int64{100, 102, 98, 101, 99, 103, 97, 100, 102, 5000}
	snap := BuildSnapshot(testConfig(), membersFromPrices(key, prices))

	v := snap.Evaluate(key, 5000)
	if !v.Outlier {
		t.Fatalf("Evaluate(5000) outlier = false, score %v", v.Score)
	}

	// Every clustered price survives.
	for _, p := range prices[:9] {
		v := snap.Evaluate(key, p)
		if v.Outlier {
			t.Errorf("Evaluate(%d) outlier = true, score %v", p, v.Score)
		}
		if v.Small {
			t.Errorf("Evaluate(%d) small = true for cohort of 10", p)
		}
	}
}

func TestEvaluate_SmallCohortNeverRejects(t *testing.T) {
	key := testCohortKey()
	snap := BuildSnapshot(testConfig(), membersFromPrices(key, []int64{100, 102, 5000}))

	for _, p := range []int64{100, 102, 5000} {
		v := snap.Evaluate(key, p)
		if v.Outlier {
			t.Errorf("Evaluate(%d) outlier = true in 3-record cohort", p)
		}
		if !v.Small {
			t.Errorf("Evaluate(%d) small = false, want true", p)
		}
	}
}

func TestEvaluate_UnknownCohortIsSmall(t *testing.T) {
	snap := BuildSnapshot(testConfig(), nil)

	v := snap.Evaluate(testCohortKey(), 100)
	if v.Outlier {
		t.Error("unknown cohort should not reject")
	}
	if !v.Small {
		t.Error("unknown cohort should report small")
	}
}

func TestEvaluate_ZeroMADFallback(t *testing.T) {
	key := testCohortKey()

	// Identical prices except one: MAD is 0, the deviant must still score.
	snap := BuildSnapshot(testConfig(), membersFromPrices(key, []int64{100, 100, 100, 100, 100, 100, 100, 250}))

	if v := snap.Evaluate(key, 250); !v.Outlier {
		t.Errorf("Evaluate(250) outlier = false with degenerate MAD, score %v", v.Score)
	}
	if v := snap.Evaluate(key, 100); v.Outlier {
		t.Errorf("Evaluate(100) outlier = true, score %v", v.Score)
	}
}

func TestEvaluate_AllIdenticalPrices(t *testing.T) {
	key := testCohortKey()
	snap := BuildSnapshot(testConfig(), membersFromPrices(key, []int64{100, 100, 100, 100, 100}))

	if v := snap.Evaluate(key, 100); v.Outlier || v.Score != 0 {
		t.Errorf("on-median verdict = %+v, want score 0 keep", v)
	}
	v := snap.Evaluate(key, 101)
	if !v.Outlier {
		t.Error("any deviation from a zero-spread cohort should be an outlier")
	}
	if !math.IsInf(v.Score, 1) {
		t.Errorf("score = %v, want +Inf", v.Score)
	}
}

func TestBuildSnapshot_WindowDays(t *testing.T) {
	key := testCohortKey()
	cfg := testConfig()
	cfg.MinCohortSize = 2
	cfg.WindowDays = 30

	dayMs := int64(24 * 60 * 60 * 1000)
	newest := int64(1704067200000)
	members := []Member{
		{Cohort: key, Fingerprint: "a", PriceMinor: 100, TimestampMs: newest},
		{Cohort: key, Fingerprint: "b", PriceMinor: 102, TimestampMs: newest - dayMs},
		{Cohort: key, Fingerprint: "c", PriceMinor: 98, TimestampMs: newest - 2*dayMs},
		// Stale member far outside the window would drag the median if kept.
		{Cohort: key, Fingerprint: "d", PriceMinor: 10000, TimestampMs: newest - 90*dayMs},
	}

	snap := BuildSnapshot(cfg, members)
	v := snap.Evaluate(key, 100)
	if v.Size != 3 {
		t.Errorf("windowed size = %d, want 3", v.Size)
	}
	if v.Median != 100 {
		t.Errorf("median = %v, want 100 (stale member excluded)", v.Median)
	}
}

func TestBuildSnapshot_WindowCount(t *testing.T) {
	key := testCohortKey()
	cfg := testConfig()
	cfg.MinCohortSize = 2
	cfg.WindowCount = 5

	snap := BuildSnapshot(cfg, membersFromPrices(key, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	if v := snap.Evaluate(key, 8); v.Size != 5 {
		t.Errorf("windowed size = %d, want 5", v.Size)
	}

	// membersFromPrices assigns ascending timestamps, so the newest five
	// prices are 6..10 and the median is 8.
	if v := snap.Evaluate(key, 8); v.Median != 8 {
		t.Errorf("median = %v, want 8", v.Median)
	}
}

func TestBuildSnapshot_OrderIndependence(t *testing.T) {
	key := testCohortKey()
	prices := []int64{100, 102, 98, 101, 99, 103, 97, 100, 102, 5000}
	members := membersFromPrices(key, prices)

	reversed := make([]Member, len(members))
	for i, m := range members {
		reversed[len(members)-1-i] = m
	}

	a := BuildSnapshot(testConfig(), members)
	b := BuildSnapshot(testConfig(), reversed)

	for _, p := range prices {
		va, vb := a.Evaluate(key, p), b.Evaluate(key, p)
		if va != vb {
			t.Errorf("Evaluate(%d) differs by member order: %+v vs %+v", p, va, vb)
		}
	}
}

func TestBuildSnapshot_CohortsAreIndependent(t *testing.T) {
	keyA := testCohortKey()
	keyB := testCohortKey()
	keyB.GradeValue = 9.0

	members := append(
		membersFromPrices(keyA, []int64{100, 101, 99, 100, 102}),
		membersFromPrices(keyB, []int64{50, 51, 49, 50, 52})...,
	)
	snap := BuildSnapshot(testConfig(), members)

	if v := snap.Evaluate(keyA, 100); v.Median != 100 {
		t.Errorf("cohort A median = %v, want 100", v.Median)
	}
	if v := snap.Evaluate(keyB, 50); v.Median != 50 {
		t.Errorf("cohort B median = %v, want 50", v.Median)
	}
}
