package analytics

import "time"

type ForecastPoint struct {
	Date           string  `json:"date"`
	ProjectedValue float64 `json:"projected_value"`
}

type Forecast struct {
	Average float64
	Points  []ForecastPoint
}

// NaiveForecast projects the history mean (rounded to cents) flat for horizon days after lastDate.
func NaiveForecast(history []float64, horizon int, lastDate time.Time) Forecast {
	if len(history) == 0 {
		return Forecast{Points: []ForecastPoint{}}
	}
	avg := Round(mean(history), 2)
	points := make([]ForecastPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		points = append(points, ForecastPoint{
			Date:           lastDate.AddDate(0, 0, i).Format("2006-01-02"),
			ProjectedValue: avg,
		})
	}
	return Forecast{Average: avg, Points: points}
}
