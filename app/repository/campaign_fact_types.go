package repository

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/AdInsights/app/models"
)

// CampaignDay identifies the overall row of one campaign on one day. Name is the
// campaign name reported by the run that wrote the device rows.
type CampaignDay struct {
	CampaignID string
	Date       time.Time
	Name       string
}

// FactFilter narrows reads to one platform and optionally one campaign. Zero values mean "all".
type FactFilter struct {
	Platform   models.Platform
	CampaignID string
}

// MetricTotals is the sum of the four base metrics over some set of facts.
type MetricTotals struct {
	Impressions int64
	Clicks      int64
	Spend       float64
	Conversions int64
}

// Day scans DATE columns whether the driver hands back time.Time, string or []byte.
type Day time.Time

func (d *Day) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		*d = Day(models.FactDate(v))
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		*d = Day(time.Time{})
		return nil
	}
	return fmt.Errorf("repository: cannot scan %T into Day", value)
}

func (d *Day) parse(s string) error {
	if len(s) < 10 {
		return fmt.Errorf("repository: invalid date %q", s)
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return err
	}
	*d = Day(t)
	return nil
}

func (d Day) Time() time.Time {
	return time.Time(d)
}

type DailyTotals struct {
	Date        Day
	Impressions int64
	Clicks      int64
	Spend       float64
	Conversions int64
}

func (t DailyTotals) Totals() MetricTotals {
	return MetricTotals{Impressions: t.Impressions, Clicks: t.Clicks, Spend: t.Spend, Conversions: t.Conversions}
}

type CampaignDailyValue struct {
	CampaignID   string
	CampaignName string
	Platform     models.Platform
	Date         Day
	Value        float64
}

type CampaignMetricTotal struct {
	CampaignID   string
	CampaignName string
	Platform     models.Platform
	Total        float64
}

type PlatformDailyValue struct {
	Platform models.Platform
	Date     Day
	Value    float64
}

type BreakdownTotal struct {
	BreakdownValue string
	Total          float64
}

// CampaignRef is one entry of a user's campaign picker.
type CampaignRef struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Platform models.Platform `json:"platform"`
}

var metricColumns = map[string]string{
	"spend":       "campaign_data.spend",
	"clicks":      "campaign_data.clicks",
	"impressions": "campaign_data.impressions",
	"conversions": "campaign_data.conversions",
}

// IsBaseMetric reports whether metric names a stored fact column.
func IsBaseMetric(metric string) bool {
	_, ok := metricColumns[metric]
	return ok
}
