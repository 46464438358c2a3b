// Package stats holds the small set of numeric routines the engines share.
// Non-finite inputs are masked out rather than propagated, so downstream
// classifications never see NaN or Inf.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of the finite values, 0 when none exist.
func Mean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Variance returns the population variance (divide by n) of the finite
// values, 0 when fewer than one exists.
func Variance(values []float64) float64 {
	mean, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			mean += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean /= float64(n)

	ss := 0.0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			d := v - mean
			ss += d * d
		}
	}
	return ss / float64(n)
}

// SampleVariance returns the Bessel-corrected variance (divide by n-1), 0
// when fewer than two finite values exist.
func SampleVariance(values []float64) float64 {
	mean, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			mean += v
			n++
		}
	}
	if n < 2 {
		return 0
	}
	mean /= float64(n)

	ss := 0.0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			d := v - mean
			ss += d * d
		}
	}
	return ss / float64(n-1)
}

// Median returns the middle finite value (mean of the middle two for even
// counts), 0 when none exist.
func Median(values []float64) float64 {
	var finite []float64
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 1 {
		return finite[mid]
	}
	return (finite[mid-1] + finite[mid]) / 2
}

// Slope returns the ordinary-least-squares slope of values against their
// index. Non-finite values are masked out with their indices; fewer than two
// usable points, or a degenerate denominator, yields 0.
func Slope(values []float64) float64 {
	var xs, ys []float64
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / den
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope
}

// Line returns the OLS slope and intercept of values against their index,
// for projecting a series forward. Degenerate inputs yield (0, mean).
func Line(values []float64) (slope, intercept float64) {
	slope = Slope(values)
	mean := Mean(values)
	var xs []float64
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			xs = append(xs, float64(i))
		}
	}
	intercept = mean - slope*Mean(xs)
	return slope, intercept
}

// Pearson returns the correlation coefficient between two equal-length
// series. The second result is false when the series are shorter than two
// points, differ in length, or either side has zero variance.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	meanX, meanY := Mean(x), Mean(y)
	var cov, varX, varY float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	r := cov / math.Sqrt(varX*varY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}
