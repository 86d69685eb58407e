// Package analytics holds the arithmetic behind the insight endpoints.
// Nothing here touches storage; callers pass in already aggregated values.
package analytics

import "math"

// Totals are summed base metrics for some period or day.
type Totals struct {
	Impressions int64
	Clicks      int64
	Spend       float64
	Conversions int64
}

// BaseMetrics are stored columns; DerivedMetrics are ratios computed from them.
var (
	BaseMetrics    = []string{"spend", "clicks", "impressions", "conversions"}
	DerivedMetrics = []string{"ctr", "cpc", "cvr_clicks", "cpa"}
)

// IsBaseMetric reports whether m is one of BaseMetrics.
func IsBaseMetric(m string) bool {
	for _, b := range BaseMetrics {
		if b == m {
			return true
		}
	}
	return false
}

// IsSeriesMetric reports whether m can be charted per day (base or derived).
func IsSeriesMetric(m string) bool {
	if IsBaseMetric(m) {
		return true
	}
	for _, d := range DerivedMetrics {
		if d == m {
			return true
		}
	}
	return false
}

// MetricValue evaluates metric for t. Ratios are 0 when their denominator is 0.
func MetricValue(metric string, t Totals) (float64, bool) {
	switch metric {
	case "spend":
		return t.Spend, true
	case "clicks":
		return float64(t.Clicks), true
	case "impressions":
		return float64(t.Impressions), true
	case "conversions":
		return float64(t.Conversions), true
	case "ctr":
		return ratio(float64(t.Clicks), float64(t.Impressions)) * 100, true
	case "cpc":
		return ratio(t.Spend, float64(t.Clicks)), true
	case "cvr_clicks":
		return ratio(float64(t.Conversions), float64(t.Clicks)) * 100, true
	case "cpa":
		return ratio(t.Spend, float64(t.Conversions)), true
	}
	return 0, false
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(values []float64, mu float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}
