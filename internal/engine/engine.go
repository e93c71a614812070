package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/grading"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/outlier"
	"comic-price-lab/internal/pricing"
	"comic-price-lab/internal/validity"
	"comic-price-lab/internal/variant"
)

// Confidence factors. Each records how much text inference a stage needed;
// the final confidence is their product, starting at 1.0.
const (
	confQualitativeGrade     = 0.9
	confUngradedFallback     = 0.6
	confUnrecognizedFallback = 0.5
	confUnknownVariant       = 0.7
	confUnknownSaleType      = 0.9
	confSmallCohort          = 0.9
)

// Pipeline turns batches of raw listings into normalized price records.
// A Pipeline is immutable after construction and safe for concurrent use;
// distinct batches share no mutable state.
type Pipeline struct {
	cfg      Config
	adjuster *pricing.Adjuster
	workers  int
}

// NewPipeline creates a pipeline with a validated configuration.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return &Pipeline{
		cfg:      cfg,
		adjuster: pricing.NewAdjuster(cfg.BinDiscountFactor),
		workers:  workers,
	}, nil
}

// Run normalizes one batch. Every input listing lands in exactly one of the
// result's Accepted or Rejected outputs; a malformed listing fails the whole
// batch with no partial results.
// Steps:
//  1. Structural contract check (fatal on violation)
//  2. Per-record stages on the worker pool: validity, grade, variant,
//     price adjustment (pure, order-free)
//  3. Collapse byte-identical duplicate captures to a single instance
//  4. Freeze the cohort snapshot (the batch-wide synchronization point)
//  5. Outlier evaluation and final accept/reject
func (p *Pipeline) Run(ctx context.Context, listings []*domain.RawListing) (*BatchResult, error) {
	// 1. Contract check
	for i, l := range listings {
		if l == nil {
			return nil, fmt.Errorf("%w: listing %d is nil", ErrMalformedBatch, i)
		}
		if err := checkWellFormed(l); err != nil {
			return nil, fmt.Errorf("%w: listing %d (%s/%s): %v",
				ErrMalformedBatch, i, l.SourceID, l.ExternalID, err)
		}
	}

	records := make([]*inflight, len(listings))
	for i, l := range listings {
		records[i] = &inflight{
			listing:     l,
			fingerprint: idhash.ComputeContentHash(l),
			stage:       StageReceived,
			confidence:  1.0,
		}
	}

	// 2. Pure per-record stages
	checker := validity.NewChecker(p.cfg.validityConfig(), listings)
	p.runStages(ctx, checker, records)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Byte-identical captures pass duplicate election together; only one
	// instance may proceed. Instances are indistinguishable, so which one
	// survives cannot affect any outcome.
	survivors := make(map[domain.ListingKey]bool, len(records))
	for _, f := range records {
		if f.terminal() {
			continue
		}
		key := f.listing.Key()
		if survivors[key] {
			f.rejectWith(domain.RejectDuplicate,
				fmt.Sprintf("identical duplicate capture of %s/%s", f.listing.SourceID, f.listing.ExternalID))
			continue
		}
		survivors[key] = true
	}

	// 4. Cohort snapshot
	var members []outlier.Member
	for _, f := range records {
		if f.terminal() {
			continue
		}
		members = append(members, outlier.Member{
			Cohort:      f.cohort,
			Fingerprint: f.fingerprint,
			PriceMinor:  f.adjusted,
			TimestampMs: f.listing.TimestampMs,
		})
	}
	snap := outlier.BuildSnapshot(outlier.Config{
		KFactor:       p.cfg.OutlierKFactor,
		MinCohortSize: p.cfg.MinCohortSize,
		WindowDays:    p.cfg.WindowDays,
		WindowCount:   p.cfg.WindowCount,
	}, members)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Outlier evaluation and finalization
	for _, f := range records {
		if f.terminal() {
			continue
		}
		v := snap.Evaluate(f.cohort, f.adjusted)
		f.advance(StageOutlierChecked)
		if v.Outlier {
			f.rejectWith(domain.RejectStatisticalOutlier,
				fmt.Sprintf("price %d vs cohort median %.0f (score %.1f, n=%d)",
					f.adjusted, v.Median, v.Score, v.Size))
			continue
		}
		if v.Small {
			f.confidence *= confSmallCohort
		}
		f.advance(StageAccepted)
	}

	return assembleResult(records), nil
}

// runStages drains the batch through the pure per-record stages.
func (p *Pipeline) runStages(ctx context.Context, checker *validity.Checker, records []*inflight) {
	jobs := make(chan *inflight)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				p.processRecord(checker, f)
			}
		}()
	}

	for _, f := range records {
		if ctx.Err() != nil {
			break
		}
		jobs <- f
	}
	close(jobs)
	wg.Wait()
}

// processRecord advances one record from RECEIVED to PRICE_ADJUSTED, or
// rejects it along the way. Pure given the immutable checker and config.
func (p *Pipeline) processRecord(checker *validity.Checker, f *inflight) {
	l := f.listing

	// Validity
	if v := checker.Check(l); !v.OK {
		f.rejectWith(v.Reason, v.Detail)
		return
	}
	f.advance(StageValidated)

	// Grade resolution
	res := grading.Normalize(l.GradeLabel)
	f.gradeKind = res.Kind
	switch res.Kind {
	case grading.KindExact:
		f.grade = res.Grade
	case grading.KindQualitative:
		f.grade = res.Grade
		f.confidence *= confQualitativeGrade
	case grading.KindUngraded, grading.KindUnrecognized:
		if p.cfg.UngradedFallbackGrade == 0 {
			f.rejectWith(domain.RejectUnparsableIdentity,
				fmt.Sprintf("grade label %q has no canonical grade and no fallback is configured", l.GradeLabel))
			return
		}
		f.grade = domain.CanonicalGrade{Value: p.cfg.UngradedFallbackGrade}
		if res.Kind == grading.KindUngraded {
			f.confidence *= confUngradedFallback
		} else {
			f.confidence *= confUnrecognizedFallback
		}
	}
	f.advance(StageGradeResolved)

	// Variant resolution
	cls, err := variant.Classify(l.SeriesTitle, l.IssueNumber, l.VariantLabel)
	if err != nil {
		f.rejectWith(domain.RejectUnparsableIdentity, err.Error())
		return
	}
	f.variantKey = cls.Key
	if !cls.Matched {
		f.confidence *= confUnknownVariant
	}
	f.advance(StageVariantResolved)

	// Sale-type price adjustment, applied exactly once
	adj := p.adjuster.Adjust(l.SaleType, l.Status, l.PriceMinor)
	f.adjusted = adj.PriceMinor
	if adj.Penalized {
		f.confidence *= confUnknownSaleType
	}
	f.advance(StagePriceAdjusted)

	f.cohort = outlier.CohortKey{
		Variant:    f.variantKey,
		GradeValue: f.grade.Value,
		Currency:   l.Currency,
	}
}

// checkWellFormed validates the structural contract of a listing. Domain
// problems (bad prices, unparsable text) are per-record rejections and are
// not checked here.
func checkWellFormed(l *domain.RawListing) error {
	if l.SourceID == "" {
		return fmt.Errorf("missing source id")
	}
	if l.ExternalID == "" {
		return fmt.Errorf("missing external id")
	}
	if l.TimestampMs <= 0 {
		return fmt.Errorf("missing timestamp")
	}
	if l.Currency == "" {
		return fmt.Errorf("missing currency")
	}
	if !l.SaleType.IsValid() {
		return fmt.Errorf("invalid sale type %q", l.SaleType)
	}
	if !l.Status.IsValid() {
		return fmt.Errorf("invalid status %q", l.Status)
	}
	return nil
}
