package ingestion

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
)

type factKey struct {
	campaignID     string
	date           time.Time
	breakdownType  string
	breakdownValue string
}

type factSum struct {
	campaignName string
	impressions  int64
	clicks       int64
	spend        decimal.Decimal
	conversions  float64
}

// aggregate sums vendor rows that land on the same fact key within one run.
type aggregate struct {
	integrationID uint
	platform      models.Platform
	order         []factKey
	sums          map[factKey]*factSum
}

func newAggregate(integrationID uint, platform models.Platform) *aggregate {
	return &aggregate{
		integrationID: integrationID,
		platform:      platform,
		sums:          make(map[factKey]*factSum),
	}
}

func (a *aggregate) add(k factKey, name string, impressions, clicks int64, spend decimal.Decimal, conversions float64) {
	s, ok := a.sums[k]
	if !ok {
		s = &factSum{spend: decimal.Zero}
		a.sums[k] = s
		a.order = append(a.order, k)
	}
	if name != "" {
		s.campaignName = name
	}
	s.impressions += impressions
	s.clicks += clicks
	s.spend = s.spend.Add(spend)
	s.conversions += conversions
}

// facts returns the rows of one breakdown dimension in first-seen order.
func (a *aggregate) facts(breakdownType string) []models.CampaignFact {
	var out []models.CampaignFact
	for _, k := range a.order {
		if k.breakdownType != breakdownType {
			continue
		}
		s := a.sums[k]
		out = append(out, models.CampaignFact{
			IntegrationID:        a.integrationID,
			Platform:             a.platform,
			CampaignIDPlatform:   k.campaignID,
			CampaignNamePlatform: s.campaignName,
			Date:                 k.date,
			BreakdownType:        k.breakdownType,
			BreakdownValue:       k.breakdownValue,
			Impressions:          s.impressions,
			Clicks:               s.clicks,
			Spend:                s.spend.Round(2),
			Conversions:          int64(s.conversions),
		})
	}
	return out
}

// deviceDays lists the distinct (campaign, date) pairs that have device rows, oldest first,
// with the campaign name this run reported for them.
func (a *aggregate) deviceDays() []repository.CampaignDay {
	type day struct {
		campaignID string
		date       time.Time
	}
	index := make(map[day]int)
	var out []repository.CampaignDay
	for _, k := range a.order {
		if k.breakdownType != models.BreakdownDevice {
			continue
		}
		name := a.sums[k].campaignName
		d := day{campaignID: k.campaignID, date: k.date}
		if i, ok := index[d]; ok {
			if name != "" {
				out[i].Name = name
			}
			continue
		}
		index[d] = len(out)
		out = append(out, repository.CampaignDay{CampaignID: k.campaignID, Date: k.date, Name: name})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out
}
