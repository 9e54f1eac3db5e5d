package report

import (
	"math"
	"sort"
)

// quantile returns the q-quantile of sorted values using linear
// interpolation between the closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 denominator). It is NaN for
// fewer than two values.
func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func numericSummary(values []float64) *NumericStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	m := mean(sorted)
	return &NumericStats{
		Mean: number(m),
		Std:  number(stddev(sorted, m)),
		Min:  number(sorted[0]),
		P25:  number(quantile(sorted, 0.25)),
		P50:  number(quantile(sorted, 0.50)),
		P75:  number(quantile(sorted, 0.75)),
		Max:  number(sorted[len(sorted)-1]),
	}
}

// number maps NaN to nil so it serializes as JSON null.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
