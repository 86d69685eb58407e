package analytics

import "fmt"

const (
	StatusPositive = "positive"
	StatusWarning  = "warning"
	StatusNeutral  = "neutral"
)

// significantChange is the percentage beyond which a metric shift is flagged.
const significantChange = 20.0

// Metrics is a scorecard summary with all values rounded to cents.
type Metrics struct {
	Spend       float64 `json:"spend"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CVR         float64 `json:"cvr_clicks"`
	CPA         float64 `json:"cpa"`
}

type Observation struct {
	Metric        string  `json:"metric"`
	RecentValue   float64 `json:"recent_value"`
	BaselineValue float64 `json:"baseline_value"`
	ChangePercent string  `json:"change_percent"`
	Message       string  `json:"message"`
	Status        string  `json:"status"`
}

func DeriveMetrics(t Totals) Metrics {
	ctr, _ := MetricValue("ctr", t)
	cpc, _ := MetricValue("cpc", t)
	cvr, _ := MetricValue("cvr_clicks", t)
	cpa, _ := MetricValue("cpa", t)
	return Metrics{
		Spend:       Round(t.Spend, 2),
		Clicks:      t.Clicks,
		Impressions: t.Impressions,
		Conversions: t.Conversions,
		CTR:         Round(ctr, 2),
		CPC:         Round(cpc, 2),
		CVR:         Round(cvr, 2),
		CPA:         Round(cpa, 2),
	}
}

type ratioMetric struct {
	label       string
	value       func(Metrics) float64
	lowerBetter bool
}

var scorecardMetrics = []ratioMetric{
	{"CTR", func(m Metrics) float64 { return m.CTR }, false},
	{"CPC", func(m Metrics) float64 { return m.CPC }, true},
	{"CVR_CLICKS", func(m Metrics) float64 { return m.CVR }, false},
	{"CPA", func(m Metrics) float64 { return m.CPA }, true},
}

// FormatChange renders a signed percentage with one decimal, e.g. "+12.5%".
func FormatChange(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

// BuildObservations compares the ratio metrics of both periods and appends a neutral spend line.
func BuildObservations(recent, baseline Metrics) []Observation {
	out := make([]Observation, 0, len(scorecardMetrics)+1)
	for _, m := range scorecardMetrics {
		r, b := m.value(recent), m.value(baseline)
		obs := Observation{
			Metric:        m.label,
			RecentValue:   r,
			BaselineValue: b,
			ChangePercent: "N/A",
			Status:        StatusNeutral,
			Message:       fmt.Sprintf("%s is %.2f for the recent period.", m.label, r),
		}

		switch {
		case b != 0:
			pct := (r - b) / b * 100
			obs.ChangePercent = FormatChange(pct)
			obs.Message += fmt.Sprintf(" The baseline was %.2f. This is a %s change.", b, obs.ChangePercent)
			worse := pct < -significantChange
			better := pct > significantChange
			if m.lowerBetter {
				worse, better = better, worse
			}
			if worse {
				obs.Status = StatusWarning
				obs.Message += " This change may require attention."
			} else if better {
				obs.Status = StatusPositive
				obs.Message += " This is a positive improvement."
			}
		case r != 0:
			obs.Message += " The baseline was zero or not applicable."
			if !m.lowerBetter {
				obs.Status = StatusPositive
			} else if r > 0 {
				obs.Status = StatusWarning
			}
		}
		out = append(out, obs)
	}

	spend := Observation{
		Metric:        "Spend",
		RecentValue:   recent.Spend,
		BaselineValue: baseline.Spend,
		ChangePercent: "N/A",
		Status:        StatusNeutral,
		Message:       fmt.Sprintf("Recent period spend is %.2f. Baseline period spend was %.2f.", recent.Spend, baseline.Spend),
	}
	if baseline.Spend != 0 {
		spend.ChangePercent = FormatChange((recent.Spend - baseline.Spend) / baseline.Spend * 100)
	}
	return append(out, spend)
}
