// Package verification replays stored batch runs and checks that the
// persisted outputs still reproduce from the persisted inputs.
package verification

import (
	"context"
	"math"

	"comic-price-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons. Grades and
// confidences come from fixed tables and deterministic arithmetic, so the
// tolerance absorbs representation noise only, not drift.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// RecordResult contains the comparison outcome for one listing key.
type RecordResult struct {
	Key         domain.ListingKey
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains the comparison outcome for one batch run.
type VerificationReport struct {
	RunID          string
	ReplayedInputs int // raw listings reloaded from the run's window

	TotalKeys     int // listing keys in the stored or replayed output
	MatchedKeys   int
	DivergentKeys int

	// Run-level count mismatches (received, accepted, rejected).
	RunDivergences []FieldDivergence

	// Per-key results, sorted by (source_id, external_id).
	Results []RecordResult
}

// Match reports whether the replay reproduced the stored run exactly.
func (r *VerificationReport) Match() bool {
	return r.DivergentKeys == 0 && len(r.RunDivergences) == 0
}

// Verifier replays batch runs against their stored outputs.
type Verifier interface {
	// VerifyRun replays a single run by ID.
	// It reloads the run's input window from the raw listing store,
	// re-executes the pipeline, and compares every output record.
	VerifyRun(ctx context.Context, runID string) (*VerificationReport, error)

	// VerifyRecent replays the most recent runs, newest first.
	VerifyRecent(ctx context.Context, limit int) ([]*VerificationReport, error)
}

// CompareNormalizedRecords compares two accepted records for the same
// listing key and returns divergences. Uses FloatTolerance for float64
// comparisons.
func CompareNormalizedRecords(stored, replayed *domain.NormalizedRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Variant.Series != replayed.Variant.Series {
		divergences = append(divergences, FieldDivergence{
			Field:    "Variant.Series",
			Expected: stored.Variant.Series,
			Actual:   replayed.Variant.Series,
		})
	}

	if stored.Variant.Issue != replayed.Variant.Issue {
		divergences = append(divergences, FieldDivergence{
			Field:    "Variant.Issue",
			Expected: stored.Variant.Issue,
			Actual:   replayed.Variant.Issue,
		})
	}

	if stored.Variant.Class != replayed.Variant.Class {
		divergences = append(divergences, FieldDivergence{
			Field:    "Variant.Class",
			Expected: stored.Variant.Class,
			Actual:   replayed.Variant.Class,
		})
	}

	if !floatEquals(stored.Grade.Value, replayed.Grade.Value) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Grade.Value",
			Expected: stored.Grade.Value,
			Actual:   replayed.Grade.Value,
		})
	}

	if stored.Grade.Qualifier != replayed.Grade.Qualifier {
		divergences = append(divergences, FieldDivergence{
			Field:    "Grade.Qualifier",
			Expected: stored.Grade.Qualifier,
			Actual:   replayed.Grade.Qualifier,
		})
	}

	// AdjustedPriceMinor is the critical value; minor units compare exactly.
	if stored.AdjustedPriceMinor != replayed.AdjustedPriceMinor {
		divergences = append(divergences, FieldDivergence{
			Field:    "AdjustedPriceMinor",
			Expected: stored.AdjustedPriceMinor,
			Actual:   replayed.AdjustedPriceMinor,
		})
	}

	if stored.Currency != replayed.Currency {
		divergences = append(divergences, FieldDivergence{
			Field:    "Currency",
			Expected: stored.Currency,
			Actual:   replayed.Currency,
		})
	}

	if stored.SaleType != replayed.SaleType {
		divergences = append(divergences, FieldDivergence{
			Field:    "SaleType",
			Expected: stored.SaleType,
			Actual:   replayed.SaleType,
		})
	}

	if stored.TimestampMs != replayed.TimestampMs {
		divergences = append(divergences, FieldDivergence{
			Field:    "TimestampMs",
			Expected: stored.TimestampMs,
			Actual:   replayed.TimestampMs,
		})
	}

	if !floatEquals(stored.Confidence, replayed.Confidence) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Confidence",
			Expected: stored.Confidence,
			Actual:   replayed.Confidence,
		})
	}

	return divergences
}

// CompareRejectedLists compares the rejections recorded for one listing key.
// A key can reject more than once (duplicate captures each get a row), so
// both sides are compared as ordered lists after canonical sorting.
func CompareRejectedLists(stored, replayed []*domain.RejectedRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "RejectionCount",
			Expected: len(stored),
			Actual:   len(replayed),
		})
		return divergences
	}

	for i := range stored {
		if stored[i].Reason != replayed[i].Reason {
			divergences = append(divergences, FieldDivergence{
				Field:    "Reason",
				Expected: stored[i].Reason,
				Actual:   replayed[i].Reason,
			})
		}
		if stored[i].Detail != replayed[i].Detail {
			divergences = append(divergences, FieldDivergence{
				Field:    "Detail",
				Expected: stored[i].Detail,
				Actual:   replayed[i].Detail,
			})
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
