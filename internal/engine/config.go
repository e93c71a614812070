package engine

import (
	"fmt"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/validity"
)

// Config holds every knob of the normalization pipeline. It is fixed at
// construction; a batch never observes a config change mid-run.
type Config struct {
	// Validity
	SoldOnly       bool                    // only completed sales become records
	MinPriceMinor  int64                   // plausibility floor, minor units
	MaxPriceMinor  int64                   // plausibility ceiling, minor units (0 = none)
	RelistedPolicy validity.RelistedPolicy // TREAT_AS_NEW | SUPPRESS

	// Grading fallback. 0 rejects ungraded/unrecognized labels as
	// unparsable; any canonical scale value lets them continue at that
	// grade with sharply reduced confidence. The value is operator policy,
	// never inferred from the label.
	UngradedFallbackGrade float64

	// Sale-type bias correction
	BinDiscountFactor float64 // asking-price discount, (0, 1]

	// Outlier detection
	OutlierKFactor float64 // modified z-score threshold
	MinCohortSize  int     // below this, penalize instead of reject
	WindowDays     int     // cohort recency window, days (0 = unbounded)
	WindowCount    int     // cohort recency window, records (0 = unbounded)

	// Per-record stages run on this many workers. 0 picks a default.
	Workers int
}

// DefaultConfig returns the standard production configuration.
func DefaultConfig() Config {
	return Config{
		SoldOnly:              true,
		MinPriceMinor:         100,       // one currency unit
		MaxPriceMinor:         500000000, // five million units
		RelistedPolicy:        validity.RelistedTreatAsNew,
		UngradedFallbackGrade: 0,
		BinDiscountFactor:     0.85,
		OutlierKFactor:        3.5,
		MinCohortSize:         5,
		WindowDays:            90,
		WindowCount:           200,
		Workers:               4,
	}
}

// Validate checks config consistency.
func (c Config) Validate() error {
	if c.MinPriceMinor < 0 {
		return fmt.Errorf("min price must be >= 0, got %d", c.MinPriceMinor)
	}
	if c.MaxPriceMinor < 0 {
		return fmt.Errorf("max price must be >= 0, got %d", c.MaxPriceMinor)
	}
	if c.MaxPriceMinor > 0 && c.MaxPriceMinor < c.MinPriceMinor {
		return fmt.Errorf("max price %d below min price %d", c.MaxPriceMinor, c.MinPriceMinor)
	}
	if c.RelistedPolicy != "" && !c.RelistedPolicy.IsValid() {
		return fmt.Errorf("invalid relisted policy %q", c.RelistedPolicy)
	}
	if c.UngradedFallbackGrade != 0 && !domain.IsCanonicalGradeValue(c.UngradedFallbackGrade) {
		return fmt.Errorf("ungraded fallback grade %v is not on the canonical scale", c.UngradedFallbackGrade)
	}
	if c.BinDiscountFactor <= 0 || c.BinDiscountFactor > 1 {
		return fmt.Errorf("bin discount factor must be in (0, 1], got %v", c.BinDiscountFactor)
	}
	if c.OutlierKFactor <= 0 {
		return fmt.Errorf("outlier k factor must be > 0, got %v", c.OutlierKFactor)
	}
	if c.MinCohortSize < 1 {
		return fmt.Errorf("min cohort size must be >= 1, got %d", c.MinCohortSize)
	}
	if c.WindowDays < 0 || c.WindowCount < 0 {
		return fmt.Errorf("cohort window bounds must be >= 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// validityConfig projects the engine config onto the validity checker.
func (c Config) validityConfig() validity.Config {
	return validity.Config{
		SoldOnly:       c.SoldOnly,
		MinPriceMinor:  c.MinPriceMinor,
		MaxPriceMinor:  c.MaxPriceMinor,
		RelistedPolicy: c.RelistedPolicy,
	}
}
