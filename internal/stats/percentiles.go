// Package stats reduces raw latency samples into percentile statistics.
package stats

import (
	"math"
	"sort"
)

// LatencyPercentiles is an immutable snapshot of interpolated latency
// percentiles. All values are milliseconds. For a non-empty sample set
// P50 <= P95 <= P99 <= Max holds by construction; for an empty set all
// fields are zero.
type LatencyPercentiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// ComputePercentiles reduces an unordered collection of non-negative
// latency samples (milliseconds) into p50/p95/p99/max.
//
// Percentile-at-rank uses linear interpolation between the two nearest
// order statistics: rank = (p/100) * (n-1), blended by the fractional
// part of rank. The continuous estimator keeps reported percentiles
// moving smoothly as samples accumulate on a live, growing sample set
// instead of jumping between discrete sample values.
//
// The caller's slice is never mutated; sorting happens on a copy.
func ComputePercentiles(samples []float64) LatencyPercentiles {
	if len(samples) == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return LatencyPercentiles{
		P50: percentileAtRank(sorted, 50),
		P95: percentileAtRank(sorted, 95),
		P99: percentileAtRank(sorted, 99),
		Max: sorted[len(sorted)-1],
	}
}

// percentileAtRank computes percentile p over an already-sorted slice.
func percentileAtRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ValidatePercentileOrdering reports whether P50 <= P95 <= P99 <= Max.
// The interpolation above guarantees this by construction; the check
// exists as a standing invariant guard against regressions, not as a
// runtime correctness gate.
func ValidatePercentileOrdering(p LatencyPercentiles) bool {
	return p.P50 <= p.P95 && p.P95 <= p.P99 && p.P99 <= p.Max
}
