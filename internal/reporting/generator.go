package reporting

import (
	"context"
	"sort"
	"time"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// Generator produces reports from stored run results.
type Generator struct {
	runStore      storage.BatchRunStore
	recordStore   storage.NormalizedRecordStore
	rejectedStore storage.RejectedRecordStore

	thresholds    QualityThresholds
	minCohortSize int
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.BatchRunStore,
	recordStore storage.NormalizedRecordStore,
	rejectedStore storage.RejectedRecordStore,
) *Generator {
	return &Generator{
		runStore:      runStore,
		recordStore:   recordStore,
		rejectedStore: rejectedStore,
		thresholds:    DefaultQualityThresholds(),
		minCohortSize: 5,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds sets custom quality gate thresholds.
func (g *Generator) WithThresholds(t QualityThresholds) *Generator {
	g.thresholds = t
	return g
}

// WithMinCohortSize sets the cohort size that counts as qualified.
func (g *Generator) WithMinCohortSize(n int) *Generator {
	if n > 0 {
		g.minCohortSize = n
	}
	return g
}

// Generate produces a complete report for one batch run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	accepted, err := g.recordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	rejectionCounts, err := g.rejectedStore.CountByReason(ctx, runID)
	if err != nil {
		return nil, err
	}

	cohorts := g.generateCohorts(accepted)
	coverage := cohortCoverage(cohorts, len(accepted))

	gate := NewGateEvaluator(g.thresholds).Evaluate(GateInput{
		Received:         run.Received,
		Accepted:         run.Accepted,
		RejectedByReason: rejectionCounts,
		CohortCoverage:   coverage,
	})

	return &Report{
		GeneratedAt: g.now(),
		RunID:       runID,
		RunSummary:  g.generateRunSummary(run, accepted),
		Rejections:  g.generateRejections(run, rejectionCounts),
		Confidence:  g.generateConfidence(accepted),
		Cohorts:     cohorts,
		QualityGate: gate,
	}, nil
}

// generateRunSummary computes counts and timings for one run.
func (g *Generator) generateRunSummary(run *domain.BatchRun, accepted []*domain.NormalizedRecord) RunSummary {
	parseRate := 0.0
	if run.Received > 0 {
		parseRate = float64(run.Accepted) / float64(run.Received)
	}

	sources := make(map[string]struct{})
	for _, r := range accepted {
		sources[r.SourceID] = struct{}{}
	}

	return RunSummary{
		Received:     run.Received,
		Accepted:     run.Accepted,
		Rejected:     run.Rejected,
		ParseRate:    parseRate,
		StartedAtMs:  run.StartedAtMs,
		FinishedAtMs: run.FinishedAtMs,
		DurationMs:   run.FinishedAtMs - run.StartedAtMs,
		Sources:      len(sources),
	}
}

// generateRejections builds the taxonomy breakdown in stable order.
func (g *Generator) generateRejections(run *domain.BatchRun, counts map[domain.RejectReason]int) []RejectionReasonRow {
	rows := make([]RejectionReasonRow, 0, len(domain.AllRejectReasons))
	for _, reason := range domain.AllRejectReasons {
		count := counts[reason]
		share := 0.0
		if run.Rejected > 0 {
			share = float64(count) / float64(run.Rejected)
		}
		rows = append(rows, RejectionReasonRow{
			Reason: reason,
			Count:  count,
			Share:  share,
		})
	}
	return rows
}

// generateConfidence summarizes the confidence distribution of accepted records.
func (g *Generator) generateConfidence(accepted []*domain.NormalizedRecord) ConfidenceSection {
	if len(accepted) == 0 {
		return ConfidenceSection{}
	}

	values := make([]float64, len(accepted))
	sum := 0.0
	for i, r := range accepted {
		values[i] = r.Confidence
		sum += r.Confidence
	}
	sort.Float64s(values)

	return ConfidenceSection{
		Count:  len(values),
		Mean:   sum / float64(len(values)),
		Min:    values[0],
		P10:    computePercentile(values, 0.10),
		P25:    computePercentile(values, 0.25),
		Median: computePercentile(values, 0.50),
		P75:    computePercentile(values, 0.75),
		P90:    computePercentile(values, 0.90),
		Max:    values[len(values)-1],
	}
}

// cohortIdentity groups records that are directly comparable.
type cohortIdentity struct {
	Series    string
	Issue     string
	Class     domain.VariantClass
	Grade     float64
	Qualifier domain.GradeQualifier
}

// generateCohorts builds per-cohort price statistics over accepted records.
func (g *Generator) generateCohorts(accepted []*domain.NormalizedRecord) []CohortRow {
	groups := make(map[cohortIdentity][]int64)
	for _, r := range accepted {
		id := cohortIdentity{
			Series:    r.Variant.Series,
			Issue:     r.Variant.Issue,
			Class:     r.Variant.Class,
			Grade:     r.Grade.Value,
			Qualifier: r.Grade.Qualifier,
		}
		groups[id] = append(groups[id], r.AdjustedPriceMinor)
	}

	rows := make([]CohortRow, 0, len(groups))
	for id, prices := range groups {
		sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

		rows = append(rows, CohortRow{
			Series:           id.Series,
			Issue:            id.Issue,
			Class:            id.Class,
			Grade:            id.Grade,
			Qualifier:        id.Qualifier,
			Records:          len(prices),
			MedianPriceMinor: medianInt64(prices),
			MinPriceMinor:    prices[0],
			MaxPriceMinor:    prices[len(prices)-1],
			Qualified:        len(prices) >= g.minCohortSize && id.Qualifier == domain.QualifierNone,
		})
	}

	// Sort by (series, issue, class, grade, qualifier)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Series != rows[j].Series {
			return rows[i].Series < rows[j].Series
		}
		if rows[i].Issue != rows[j].Issue {
			return rows[i].Issue < rows[j].Issue
		}
		if rows[i].Class != rows[j].Class {
			return rows[i].Class < rows[j].Class
		}
		if rows[i].Grade != rows[j].Grade {
			return rows[i].Grade < rows[j].Grade
		}
		return rows[i].Qualifier < rows[j].Qualifier
	})

	return rows
}

// cohortCoverage returns the share of accepted records in qualified cohorts.
func cohortCoverage(cohorts []CohortRow, accepted int) float64 {
	if accepted == 0 {
		return 0
	}

	covered := 0
	for _, c := range cohorts {
		if c.Qualified {
			covered += c.Records
		}
	}
	return float64(covered) / float64(accepted)
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// medianInt64 returns the median of pre-sorted prices, rounding the midpoint
// of even-sized cohorts down to stay on a representable minor unit.
func medianInt64(sorted []int64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
