package reporting

import (
	"fmt"

	"comic-price-lab/internal/domain"
)

// QualityThresholds holds the bounds each batch run is checked against.
type QualityThresholds struct {
	// MinParseRate is the minimum accepted/received ratio.
	MinParseRate float64
	// MaxUnparsableShare caps UNPARSABLE_IDENTITY rejections relative to received.
	MaxUnparsableShare float64
	// MaxOutlierShare caps STATISTICAL_OUTLIER rejections relative to received.
	MaxOutlierShare float64
	// MinCohortCoverage is the minimum share of accepted records that land in
	// cohorts large enough for outlier screening.
	MinCohortCoverage float64
}

// DefaultQualityThresholds returns the standard gate bounds.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinParseRate:       0.60,
		MaxUnparsableShare: 0.20,
		MaxOutlierShare:    0.10,
		MinCohortCoverage:  0.50,
	}
}

// GateInput contains the numeric facts of one run for gate evaluation.
type GateInput struct {
	Received         int
	Accepted         int
	RejectedByReason map[domain.RejectReason]int
	CohortCoverage   float64 // share of accepted records in qualified cohorts
}

// GateEvaluator evaluates release criteria for a batch run.
type GateEvaluator struct {
	thresholds QualityThresholds
}

// NewGateEvaluator creates a new evaluator with the given thresholds.
func NewGateEvaluator(t QualityThresholds) *GateEvaluator {
	return &GateEvaluator{thresholds: t}
}

// Evaluate produces the criteria table and verdict for one run.
// PASS requires every criterion to hold; any failure downgrades to REVIEW.
func (e *GateEvaluator) Evaluate(input GateInput) QualityGateSection {
	criteria := e.evaluateCriteria(input)

	verdict := VerdictPass
	for _, c := range criteria {
		if !c.Pass {
			verdict = VerdictReview
			break
		}
	}

	return QualityGateSection{
		Criteria: criteria,
		Verdict:  verdict,
	}
}

// evaluateCriteria evaluates the 5 gate criteria.
func (e *GateEvaluator) evaluateCriteria(input GateInput) []CriterionResult {
	criteria := make([]CriterionResult, 5)

	// 1. Batch not empty
	criteria[0] = CriterionResult{
		Name:      "Non-empty batch",
		Threshold: "received > 0",
		Actual:    fmt.Sprintf("%d", input.Received),
		Pass:      input.Received > 0,
	}

	parseRate := 0.0
	unparsableShare := 0.0
	outlierShare := 0.0
	if input.Received > 0 {
		parseRate = float64(input.Accepted) / float64(input.Received)
		unparsableShare = float64(input.RejectedByReason[domain.RejectUnparsableIdentity]) / float64(input.Received)
		outlierShare = float64(input.RejectedByReason[domain.RejectStatisticalOutlier]) / float64(input.Received)
	}

	// 2. Parse rate
	criteria[1] = CriterionResult{
		Name:      "Parse rate",
		Threshold: fmt.Sprintf(">= %.2f", e.thresholds.MinParseRate),
		Actual:    fmt.Sprintf("%.4f", parseRate),
		Pass:      parseRate >= e.thresholds.MinParseRate,
	}

	// 3. Unparsable share
	criteria[2] = CriterionResult{
		Name:      "Unparsable identity share",
		Threshold: fmt.Sprintf("<= %.2f", e.thresholds.MaxUnparsableShare),
		Actual:    fmt.Sprintf("%.4f", unparsableShare),
		Pass:      unparsableShare <= e.thresholds.MaxUnparsableShare,
	}

	// 4. Outlier share
	criteria[3] = CriterionResult{
		Name:      "Statistical outlier share",
		Threshold: fmt.Sprintf("<= %.2f", e.thresholds.MaxOutlierShare),
		Actual:    fmt.Sprintf("%.4f", outlierShare),
		Pass:      outlierShare <= e.thresholds.MaxOutlierShare,
	}

	// 5. Cohort coverage
	criteria[4] = CriterionResult{
		Name:      "Cohort coverage",
		Threshold: fmt.Sprintf(">= %.2f", e.thresholds.MinCohortCoverage),
		Actual:    fmt.Sprintf("%.4f", input.CohortCoverage),
		Pass:      input.CohortCoverage >= e.thresholds.MinCohortCoverage,
	}

	return criteria
}
