package reporting

import (
	"time"

	"comic-price-lab/internal/domain"
)

// Report represents the batch run report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string

	// Run Summary
	RunSummary RunSummary

	// Rejection taxonomy breakdown (stable taxonomy order)
	Rejections []RejectionReasonRow

	// Confidence distribution over accepted records
	Confidence ConfidenceSection

	// Per-cohort price statistics (sorted by series, issue, class, grade)
	Cohorts []CohortRow

	// Quality gate verdict with criteria table
	QualityGate QualityGateSection
}

// RunSummary contains batch counts and timings.
type RunSummary struct {
	Received     int
	Accepted     int
	Rejected     int
	ParseRate    float64 // accepted / received, 0 for an empty batch
	StartedAtMs  int64
	FinishedAtMs int64
	DurationMs   int64
	Sources      int // distinct marketplace sources among accepted records
}

// RejectionReasonRow represents one taxonomy reason in the breakdown.
type RejectionReasonRow struct {
	Reason domain.RejectReason
	Count  int
	Share  float64 // of all rejections, 0 when nothing was rejected
}

// ConfidenceSection summarizes the confidence scores of accepted records.
type ConfidenceSection struct {
	Count  int
	Mean   float64
	Min    float64
	P10    float64
	P25    float64
	Median float64
	P75    float64
	P90    float64
	Max    float64
}

// CohortRow represents price statistics for one comparable cohort.
type CohortRow struct {
	Series    string
	Issue     string
	Class     domain.VariantClass
	Grade     float64
	Qualifier domain.GradeQualifier

	Records          int
	MedianPriceMinor int64
	MinPriceMinor    int64
	MaxPriceMinor    int64
	Qualified        bool // enough records to support outlier screening
}

// QualityGateSection contains the release criteria table and verdict.
type QualityGateSection struct {
	Criteria []CriterionResult
	Verdict  Verdict
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Verdict is the overall quality gate outcome.
type Verdict string

const (
	// VerdictPass means every criterion held and the run is usable downstream.
	VerdictPass Verdict = "PASS"
	// VerdictReview means at least one criterion failed and the run needs a look.
	VerdictReview Verdict = "REVIEW"
)
