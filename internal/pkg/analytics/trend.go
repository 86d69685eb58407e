package analytics

import "math"

const (
	TrendUpward           = "upward"
	TrendDownward         = "downward"
	TrendFlat             = "flat"
	TrendInsufficientData = "insufficient_data"
	TrendNoData           = "nodata"
)

// MinTrendPoints is the fewest values a trend is fitted to.
const MinTrendPoints = 3

type Trend struct {
	Slope     float64
	Intercept float64
	Direction string
}

// AnalyzeTrend fits y = slope*x + intercept over x = 0..n-1 by least squares.
// The slope counts as flat within 2% of the mean magnitude, or 1e-6 around a zero mean.
func AnalyzeTrend(values []float64) Trend {
	n := len(values)
	if n < MinTrendPoints {
		return Trend{Direction: TrendInsufficientData}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	slope := (fn*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / fn

	avg := sumY / fn
	threshold := 1e-6
	if math.Abs(avg) > 1e-6 {
		threshold = 0.02 * math.Abs(avg)
	}

	dir := TrendFlat
	switch {
	case math.Abs(slope) <= threshold:
	case slope > 0:
		dir = TrendUpward
	default:
		dir = TrendDownward
	}
	return Trend{Slope: slope, Intercept: intercept, Direction: dir}
}

// ValueAt evaluates the fitted line at index x.
func (t Trend) ValueAt(x int) float64 {
	return t.Slope*float64(x) + t.Intercept
}
