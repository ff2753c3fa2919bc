package stats

import (
	"math"
	"slices"
)

// Summary aggregates a sample after outlier exclusion.
type Summary struct {
	Count    int           // positive values considered
	Excluded int           // values removed as outliers
	Central  float64       // median after IQR, mean otherwise
	Min      float64       // smallest kept value
	Max      float64       // largest kept value
	Result   OutlierResult // detection that drove the exclusion
}

// Summarize detects outliers, drops them and reports the central value of
// the rest.
func Summarize(values []float64) Summary {
	vals := Positive(values)
	res := DetectOutliers(vals)

	kept := make([]float64, 0, len(vals))
	for _, v := range vals {
		if res.Bounded(v) {
			kept = append(kept, v)
		}
	}

	s := Summary{
		Count:    len(vals),
		Excluded: len(vals) - len(kept),
		Result:   res,
	}
	if len(kept) == 0 {
		return s
	}

	if res.Method == MethodIQR {
		s.Central = Median(kept)
	} else {
		s.Central = Mean(kept)
	}
	s.Min = slices.Min(kept)
	s.Max = slices.Max(kept)
	return s
}

// RoundedCentral returns the central value rounded to the nearest integer.
func (s Summary) RoundedCentral() int64 {
	return int64(math.Round(s.Central))
}
