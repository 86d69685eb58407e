package analytics

import (
	"fmt"
	"time"
)

// MinBaselinePoints is the shortest baseline the detector will judge against.
const MinBaselinePoints = 7

const (
	DirectionHigh = "high"
	DirectionLow  = "low"
)

const (
	sigmaThreshold    = 2.5
	lowVarianceRatio  = 0.05
	dropMinimumMean   = 10.0
	dropFractionLimit = 0.1
)

// Anomaly describes a recent value outside the expected band of its baseline.
type Anomaly struct {
	Direction string
	Value     float64
	Mean      float64
	StdDev    float64
	// Drop is set when the low-variance fallback fired instead of the sigma band.
	Drop bool
}

// DetectAnomaly compares recent against baseline using a 2.5 sigma band. For
// flat baselines (sigma <= 5% of the mean) it only flags collapses to at most
// 10% of a mean above 10. Returns nil when nothing stands out.
func DetectAnomaly(baseline []float64, recent float64) *Anomaly {
	if len(baseline) < MinBaselinePoints {
		return nil
	}
	mu := mean(baseline)
	sigma := populationStdDev(baseline, mu)
	a := &Anomaly{Value: recent, Mean: mu, StdDev: sigma}

	if sigma > lowVarianceRatio*mu || mu == 0 {
		switch {
		case recent > mu+sigmaThreshold*sigma:
			a.Direction = DirectionHigh
			return a
		case recent < mu-sigmaThreshold*sigma:
			a.Direction = DirectionLow
			return a
		}
		return nil
	}

	// inclusive: a drop to exactly a tenth of the mean must still be flagged
	if mu > dropMinimumMean && recent <= dropFractionLimit*mu {
		a.Direction = DirectionLow
		a.Drop = true
		return a
	}
	return nil
}

// SpendMessage renders the user facing explanation for a spend anomaly on day.
func (a *Anomaly) SpendMessage(day time.Time, baselineDays int) string {
	date := day.Format("Jan 02")
	if a.Drop {
		return fmt.Sprintf("Spend dropped significantly to %.2f on %s from an average of %.2f over the prior %d days.",
			a.Value, date, a.Mean, baselineDays)
	}
	word := "higher"
	if a.Direction == DirectionLow {
		word = "lower"
	}
	return fmt.Sprintf("Significantly %s spend (%.2f) on %s compared to the %d-day average (%.2f). Historical standard deviation was %.2f.",
		word, a.Value, date, baselineDays, a.Mean, a.StdDev)
}
