package outlier

import (
	"math"
	"sort"
)

// madNormalConstant rescales the modified z-score so KFactor thresholds are
// comparable to standard-deviation multiples under a normal distribution.
const madNormalConstant = 0.6745

// meanADNormalConstant is the equivalent rescale when falling back from MAD
// to the mean absolute deviation.
const meanADNormalConstant = 1.253314

// computeMedian calculates the median of values.
// values must be pre-sorted ASC.
func computeMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// computeMAD calculates the median absolute deviation around a median.
func computeMAD(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	sort.Float64s(deviations)
	return computeMedian(deviations)
}

// computeMeanAD calculates the mean absolute deviation around a median.
// Used as the spread estimate when the MAD degenerates to zero.
func computeMeanAD(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - median)
	}
	return sum / float64(len(values))
}

// modifiedZScore computes the robust z-score of value against the spread
// statistics. Returns +Inf when every cohort member sits exactly on the
// median and the value does not.
func modifiedZScore(value, median, mad, meanAD float64) float64 {
	diff := math.Abs(value - median)
	if mad > 0 {
		return madNormalConstant * diff / mad
	}
	if meanAD > 0 {
		return diff / (meanADNormalConstant * meanAD)
	}
	if diff == 0 {
		return 0
	}
	return math.Inf(1)
}
