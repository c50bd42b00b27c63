package momentum

import "math"

// zScore normalizes a raw delta against its cohort distribution:
// (value - mean) / population stddev. A flat or empty cohort carries no
// normalized signal and yields 0, never NaN or Inf — this covers the
// one-member cohort too. The function is pure; it does not special-case
// the evaluated artist being part of its own cohort.
func zScore(value float64, cohort []float64) float64 {
	if len(cohort) == 0 {
		return 0
	}
	m := mean(cohort)
	sd := stddev(cohort, m)
	if sd == 0 {
		return 0
	}
	return (value - m) / sd
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation (divide by N, not N-1).
func stddev(values []float64, m float64) float64 {
	sum := 0.0
	for _, v := range values {
		diff := v - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
