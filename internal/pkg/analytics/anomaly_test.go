package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAnomalyNeedsSevenBaselinePoints(t *testing.T) {
	for n := 0; n < MinBaselinePoints; n++ {
		baseline := make([]float64, n)
		for i := range baseline {
			baseline[i] = 100
		}
		for _, recent := range []float64{0, 10, 100, 1e6} {
			if a := DetectAnomaly(baseline, recent); a != nil {
				t.Fatalf("len=%d recent=%v: expected no anomaly, got %+v", n, recent, a)
			}
		}
	}
}

func TestDetectAnomalySignificantDrop(t *testing.T) {
	baseline := []float64{100, 100, 100, 100, 100, 100, 100}
	a := DetectAnomaly(baseline, 10)
	require.NotNil(t, a)
	assert.Equal(t, DirectionLow, a.Direction)
	assert.True(t, a.Drop)
	assert.Equal(t, 100.0, a.Mean)
	assert.Equal(t, 0.0, a.StdDev)

	assert.Nil(t, DetectAnomaly(baseline, 11))
	assert.Nil(t, DetectAnomaly(baseline, 500), "flat baselines only flag drops")
}

func TestDetectAnomalySigmaBand(t *testing.T) {
	baseline := []float64{80, 120, 90, 110, 100, 95, 105}

	high := DetectAnomaly(baseline, 200)
	require.NotNil(t, high)
	assert.Equal(t, DirectionHigh, high.Direction)
	assert.False(t, high.Drop)

	low := DetectAnomaly(baseline, 20)
	require.NotNil(t, low)
	assert.Equal(t, DirectionLow, low.Direction)

	assert.Nil(t, DetectAnomaly(baseline, 115))
}

func TestDetectAnomalyZeroMean(t *testing.T) {
	baseline := make([]float64, 10)
	a := DetectAnomaly(baseline, 5)
	require.NotNil(t, a)
	assert.Equal(t, DirectionHigh, a.Direction)

	assert.Nil(t, DetectAnomaly(baseline, 0))
}

func TestSpendMessages(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	drop := &Anomaly{Direction: DirectionLow, Value: 10, Mean: 100, Drop: true}
	assert.Equal(t, "Spend dropped significantly to 10.00 on Mar 04 from an average of 100.00 over the prior 29 days.", drop.SpendMessage(day, 29))

	high := &Anomaly{Direction: DirectionHigh, Value: 200, Mean: 100, StdDev: 12.346}
	msg := high.SpendMessage(day, 29)
	assert.True(t, strings.HasPrefix(msg, "Significantly higher spend (200.00) on Mar 04 compared to the 29-day average (100.00)."), msg)
	assert.Contains(t, msg, "Historical standard deviation was 12.35.")
}
