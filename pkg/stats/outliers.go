// Package stats flags outliers in small samples of monetary values and
// aggregates what remains.
package stats

import (
	"math"
	"slices"
)

// Method names the outlier test that ran. Callers aggregate with the median
// after MethodIQR and with the mean otherwise.
type Method string

const (
	MethodNone   Method = "none"
	MethodIQR    Method = "iqr"
	MethodZScore Method = "zscore"
)

const (
	iqrFactor      = 1.5
	zScoreLimit    = 2.5
	minIQRSample   = 4
	minOutlierSize = 2
)

// OutlierResult reports the flagged values in input order. Lower and Upper
// are the acceptance bounds; they are zero when Method is MethodNone or the
// spread is zero.
type OutlierResult struct {
	Outliers    []float64 `json:"outliers"`
	HasOutliers bool      `json:"has_outliers"`
	Method      Method    `json:"method"`
	Lower       float64   `json:"lower,omitempty"`
	Upper       float64   `json:"upper,omitempty"`
}

// Bounded reports whether v lies within the acceptance bounds. Everything is
// within bounds when no bounds were established.
func (r OutlierResult) Bounded(v float64) bool {
	if r.Lower == 0 && r.Upper == 0 {
		return true
	}
	return v >= r.Lower && v <= r.Upper
}

// Positive drops non-positive, NaN and infinite values.
func Positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// DetectOutliers flags outliers among the positive values. Four or more
// values use Tukey fences on linearly interpolated quartiles; two or three
// use a population z-score above 2.5; fewer report MethodNone.
func DetectOutliers(values []float64) OutlierResult {
	vals := Positive(values)
	result := OutlierResult{Outliers: []float64{}, Method: MethodNone}

	switch {
	case len(vals) < minOutlierSize:
		return result
	case len(vals) >= minIQRSample:
		result.Method = MethodIQR
		sorted := slices.Clone(vals)
		slices.Sort(sorted)
		q1, q3 := Quantile(sorted, 0.25), Quantile(sorted, 0.75)
		iqr := q3 - q1
		if iqr == 0 {
			return result
		}
		result.Lower = q1 - iqrFactor*iqr
		result.Upper = q3 + iqrFactor*iqr
	default:
		result.Method = MethodZScore
		mean := Mean(vals)
		sd := StdDev(vals)
		if sd == 0 {
			return result
		}
		result.Lower = mean - zScoreLimit*sd
		result.Upper = mean + zScoreLimit*sd
	}

	for _, v := range vals {
		if !result.Bounded(v) {
			result.Outliers = append(result.Outliers, v)
		}
	}
	result.HasOutliers = len(result.Outliers) > 0
	return result
}

// Quantile returns the p-quantile of sorted values by linear interpolation
// between closest ranks at position (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Mean returns the arithmetic mean, or zero for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Median returns the median of values, or zero for no values.
func Median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Quantile(sorted, 0.5)
}
