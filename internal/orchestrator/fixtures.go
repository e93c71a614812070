package orchestrator

import (
	"context"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/storage"
)

// fixtureIngestedAt stamps every fixture capture with one ingestion time,
// after the latest capture timestamp in the set.
const fixtureIngestedAt = 1706745600000 // 2024-02-01 00:00:00 UTC

// FixtureSources lists the marketplace sources present in the fixture set.
func FixtureSources() []string {
	return []string{"ebay", "heritage"}
}

// FixtureWindow returns the [from, to] capture window covering every fixture.
func FixtureWindow() (fromMs, toMs int64) {
	return 1704067200000, 1706745600000 // 2024-01-01 .. 2024-02-01 UTC
}

// LoadFixtures populates the listing store with captures for demonstration
// runs. The set exercises every rejection reason plus grade-label merging,
// variant splitting, duplicate collapse and outlier removal.
func LoadFixtures(ctx context.Context, listingStore storage.RawListingStore) error {
	// Load the healthy graded auction cohorts
	if err := loadGradedCohorts(ctx, listingStore); err != nil {
		return err
	}

	// Load captures whose grade labels merge into one cohort
	if err := loadLabelMergeCaptures(ctx, listingStore); err != nil {
		return err
	}

	// Load captures that the run must reject
	if err := loadProblemCaptures(ctx, listingStore); err != nil {
		return err
	}

	return nil
}

func loadGradedCohorts(ctx context.Context, store storage.RawListingStore) error {
	listings := []*domain.RawListing{
		// Amazing Spider-Man #300, CGC 9.8, standard printing: nine plausible
		// auction results plus one fat-finger price the outlier stage rejects.
		{
			SourceID: "ebay", ExternalID: "asm300-01",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10000, Currency: "USD",
			TimestampMs: 1704153600000, // 2024-01-02 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-02",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10200, Currency: "USD",
			TimestampMs: 1704240000000, // 2024-01-03 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-03",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 9800, Currency: "USD",
			TimestampMs: 1704326400000, // 2024-01-04 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-04",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10100, Currency: "USD",
			TimestampMs: 1704412800000, // 2024-01-05 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-05",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 9900, Currency: "USD",
			TimestampMs: 1704499200000, // 2024-01-06 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-06",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10300, Currency: "USD",
			TimestampMs: 1704585600000, // 2024-01-07 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-07",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 9700, Currency: "USD",
			TimestampMs: 1704672000000, // 2024-01-08 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-08",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10000, Currency: "USD",
			TimestampMs: 1704758400000, // 2024-01-09 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-09",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10200, Currency: "USD",
			TimestampMs: 1704844800000, // 2024-01-10 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-10",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 500000, Currency: "USD",
			TimestampMs: 1704931200000, // 2024-01-11 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Buy-it-now sale of the same book: a realized price, so no
		// asking-price discount applies and 10030 joins the cohort above.
		{
			SourceID: "ebay", ExternalID: "asm300-11",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeBuyItNow, PriceMinor: 10030, Currency: "USD",
			TimestampMs: 1705017600000, // 2024-01-12 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Ratio incentive printing of the same issue: a separate cohort,
		// too small for the outlier stage.
		{
			SourceID: "ebay", ExternalID: "asm300-r01",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			VariantLabel: "1:25 Ratio Incentive",
			SaleType:     domain.SaleTypeAuction, PriceMinor: 45000, Currency: "USD",
			TimestampMs: 1705104000000, // 2024-01-13 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-r02",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			VariantLabel: "1:25 Ratio Incentive",
			SaleType:     domain.SaleTypeAuction, PriceMinor: 47500, Currency: "USD",
			TimestampMs: 1705190400000, // 2024-01-14 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "asm300-r03",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			VariantLabel: "1:25 Ratio Incentive",
			SaleType:     domain.SaleTypeAuction, PriceMinor: 44000, Currency: "USD",
			TimestampMs: 1705276800000, // 2024-01-15 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// The Incredible Hulk #181 from the auction-house source, CGC 9.4.
		{
			SourceID: "heritage", ExternalID: "hulk181-01",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.4",
			SaleType: domain.SaleTypeAuction, PriceMinor: 320000, Currency: "USD",
			TimestampMs: 1705363200000, // 2024-01-16 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "heritage", ExternalID: "hulk181-02",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.4",
			SaleType: domain.SaleTypeAuction, PriceMinor: 335000, Currency: "USD",
			TimestampMs: 1705449600000, // 2024-01-17 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "heritage", ExternalID: "hulk181-03",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.4",
			SaleType: domain.SaleTypeAuction, PriceMinor: 310000, Currency: "USD",
			TimestampMs: 1705536000000, // 2024-01-18 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "heritage", ExternalID: "hulk181-04",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.4",
			SaleType: domain.SaleTypeAuction, PriceMinor: 328000, Currency: "USD",
			TimestampMs: 1705622400000, // 2024-01-19 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "heritage", ExternalID: "hulk181-05",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.4",
			SaleType: domain.SaleTypeAuction, PriceMinor: 315000, Currency: "USD",
			TimestampMs: 1705708800000, // 2024-01-20 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Restored copy: grades 9.0 with the RESTORED qualifier, a
		// one-member cohort.
		{
			SourceID: "heritage", ExternalID: "hulk181-06",
			SeriesTitle: "The Incredible Hulk", IssueNumber: "#181", GradeLabel: "CGC 9.0 RESTORED",
			SaleType: domain.SaleTypeAuction, PriceMinor: 90000, Currency: "USD",
			TimestampMs: 1705795200000, // 2024-01-21 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
	}

	return insertAll(ctx, store, listings)
}

func loadLabelMergeCaptures(ctx context.Context, store storage.RawListingStore) error {
	// X-Men #1: two certified 6.0 copies and one "FN" raw-label copy. The
	// qualitative label resolves to the same 6.0, so all three price together.
	listings := []*domain.RawListing{
		{
			SourceID: "ebay", ExternalID: "xmen1-01",
			SeriesTitle: "X-Men", IssueNumber: "#1", GradeLabel: "CGC 6.0",
			SaleType: domain.SaleTypeAuction, PriceMinor: 780000, Currency: "USD",
			TimestampMs: 1705881600000, // 2024-01-22 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "xmen1-02",
			SeriesTitle: "X-Men", IssueNumber: "#1", GradeLabel: "CGC 6.0",
			SaleType: domain.SaleTypeAuction, PriceMinor: 810000, Currency: "USD",
			TimestampMs: 1705968000000, // 2024-01-23 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "xmen1-03",
			SeriesTitle: "X-Men", IssueNumber: "#1", GradeLabel: "FN",
			SaleType: domain.SaleTypeAuction, PriceMinor: 795000, Currency: "USD",
			TimestampMs: 1706054400000, // 2024-01-24 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
	}

	return insertAll(ctx, store, listings)
}

func loadProblemCaptures(ctx context.Context, store storage.RawListingStore) error {
	listings := []*domain.RawListing{
		// Cancelled sale
		{
			SourceID: "ebay", ExternalID: "prob-cancelled",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10050, Currency: "USD",
			TimestampMs: 1706140800000, // 2024-01-25 00:00:00 UTC
			Status:      domain.SaleStatusCancelled,
		},
		// Still-active listing
		{
			SourceID: "ebay", ExternalID: "prob-active",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeBuyItNow, PriceMinor: 9950, Currency: "USD",
			TimestampMs: 1706144400000, // 2024-01-25 01:00:00 UTC
			Status:      domain.SaleStatusActive,
		},
		// Relisted capture: not a completed sale under the default policy
		{
			SourceID: "ebay", ExternalID: "prob-relisted",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10150, Currency: "USD",
			TimestampMs: 1706148000000, // 2024-01-25 02:00:00 UTC
			Status:      domain.SaleStatusRelisted,
		},
		// Price below the plausibility floor
		{
			SourceID: "ebay", ExternalID: "prob-lowprice",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 50, Currency: "USD",
			TimestampMs: 1706151600000, // 2024-01-25 03:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Blank series title
		{
			SourceID: "ebay", ExternalID: "prob-noseries",
			SeriesTitle: "", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 12000, Currency: "USD",
			TimestampMs: 1706155200000, // 2024-01-25 04:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Grade label nothing resolves
		{
			SourceID: "ebay", ExternalID: "prob-badgrade",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "MAYBE FINE",
			SaleType: domain.SaleTypeAuction, PriceMinor: 15000, Currency: "USD",
			TimestampMs: 1706158800000, // 2024-01-25 05:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		// Two captures of one listing: the earlier one survives and prices
		// with the CGC 9.8 cohort, the later one is rejected as a duplicate.
		{
			SourceID: "ebay", ExternalID: "dup-75",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 9990, Currency: "USD",
			TimestampMs: 1706227200000, // 2024-01-26 00:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
		{
			SourceID: "ebay", ExternalID: "dup-75",
			SeriesTitle: "Amazing Spider-Man", IssueNumber: "#300", GradeLabel: "CGC 9.8",
			SaleType: domain.SaleTypeAuction, PriceMinor: 10010, Currency: "USD",
			TimestampMs: 1706230800000, // 2024-01-26 01:00:00 UTC
			Status:      domain.SaleStatusSold,
		},
	}

	return insertAll(ctx, store, listings)
}

// insertAll stamps derived identity fields and inserts each capture.
func insertAll(ctx context.Context, store storage.RawListingStore, listings []*domain.RawListing) error {
	for _, l := range listings {
		l.ListingID = idhash.ComputeListingID(l.SourceID, l.ExternalID)
		l.IngestedAt = fixtureIngestedAt
		if err := store.Insert(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
