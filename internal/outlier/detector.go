package outlier

import (
	"sort"

	"comic-price-lab/internal/domain"
)

// Config holds the outlier detection parameters.
type Config struct {
	KFactor       float64 // modified z-score threshold (3.5 is conventional)
	MinCohortSize int     // below this, skip rejection and penalize confidence
	WindowDays    int     // recency window in days (0 = unbounded)
	WindowCount   int     // recency window in records (0 = unbounded)
}

// CohortKey groups records that are statistically comparable: same market
// instrument, same qualifier-free grade value, same currency.
type CohortKey struct {
	Variant    domain.VariantKey
	GradeValue float64
	Currency   string
}

// Member is one record's contribution to its cohort.
type Member struct {
	Cohort      CohortKey
	Fingerprint string // content hash, tie-breaker for window ordering
	PriceMinor  int64  // adjusted price
	TimestampMs int64
}

// cohortStats is the frozen per-cohort snapshot statistics.
type cohortStats struct {
	median float64
	mad    float64
	meanAD float64
	size   int
}

// Snapshot is an immutable view of every cohort in a batch. It is built once
// after all records have adjusted prices, so evaluation order cannot affect
// outcomes.
type Snapshot struct {
	cfg   Config
	stats map[CohortKey]cohortStats
}

// BuildSnapshot freezes cohort statistics for a batch.
// Steps:
//  1. Group members by cohort key
//  2. Order each cohort by (timestamp DESC, fingerprint ASC)
//  3. Apply the recency window: drop members older than WindowDays from the
//     cohort's newest member, then cap at WindowCount members
//  4. Compute median and MAD of the windowed adjusted prices
func BuildSnapshot(cfg Config, members []Member) *Snapshot {
	byCohort := make(map[CohortKey][]Member)
	for _, m := range members {
		byCohort[m.Cohort] = append(byCohort[m.Cohort], m)
	}

	stats := make(map[CohortKey]cohortStats, len(byCohort))
	for key, cohort := range byCohort {
		sort.Slice(cohort, func(i, j int) bool {
			if cohort[i].TimestampMs != cohort[j].TimestampMs {
				return cohort[i].TimestampMs > cohort[j].TimestampMs
			}
			return cohort[i].Fingerprint < cohort[j].Fingerprint
		})

		windowed := cohort
		if cfg.WindowDays > 0 {
			cutoff := cohort[0].TimestampMs - int64(cfg.WindowDays)*24*60*60*1000
			end := len(windowed)
			for i, m := range windowed {
				if m.TimestampMs < cutoff {
					end = i
					break
				}
			}
			windowed = windowed[:end]
		}
		if cfg.WindowCount > 0 && len(windowed) > cfg.WindowCount {
			windowed = windowed[:cfg.WindowCount]
		}

		prices := make([]float64, len(windowed))
		for i, m := range windowed {
			prices[i] = float64(m.PriceMinor)
		}
		sort.Float64s(prices)

		median := computeMedian(prices)
		stats[key] = cohortStats{
			median: median,
			mad:    computeMAD(prices, median),
			meanAD: computeMeanAD(prices, median),
			size:   len(windowed),
		}
	}

	return &Snapshot{cfg: cfg, stats: stats}
}

// Verdict is the outcome of evaluating one record against its cohort.
type Verdict struct {
	Outlier bool    // reject as STATISTICAL_OUTLIER
	Small   bool    // cohort below MinCohortSize, confidence penalty instead
	Score   float64 // modified z-score
	Median  float64 // cohort median, for audit detail
	Size    int     // windowed cohort size
}

// Evaluate scores an adjusted price against the frozen cohort statistics.
// Records in a small cohort are never rejected, only marked.
func (s *Snapshot) Evaluate(key CohortKey, priceMinor int64) Verdict {
	st, ok := s.stats[key]
	if !ok || st.size < s.cfg.MinCohortSize {
		return Verdict{Small: true, Median: st.median, Size: st.size}
	}

	score := modifiedZScore(float64(priceMinor), st.median, st.mad, st.meanAD)
	return Verdict{
		Outlier: score > s.cfg.KFactor,
		Score:   score,
		Median:  st.median,
		Size:    st.size,
	}
}
