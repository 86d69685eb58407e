package analytics

import (
	"sort"

	"github.com/samber/lo"
)

// DefaultTopMovers is how many gainers and decliners are reported.
const DefaultTopMovers = 5

// CampaignKey identifies a campaign across platforms.
type CampaignKey struct {
	CampaignID string
	Platform   string
}

// PeriodValue is a campaign's metric total in one period.
type PeriodValue struct {
	Name  string
	Value float64
}

type MetricChange struct {
	CampaignIDPlatform string  `json:"campaign_id_platform"`
	CampaignName       string  `json:"campaign_name"`
	Platform           string  `json:"platform"`
	CurrentValue       float64 `json:"current_value"`
	PreviousValue      float64 `json:"previous_value"`
	AbsoluteChange     float64 `json:"absolute_change"`
	PercentageChange   float64 `json:"percentage_change"`
}

// UnionKeys returns every key present in either period, in a stable order.
func UnionKeys(current, previous map[CampaignKey]PeriodValue) []CampaignKey {
	keys := lo.Uniq(append(lo.Keys(current), lo.Keys(previous)...))
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Platform != keys[j].Platform {
			return keys[i].Platform < keys[j].Platform
		}
		return keys[i].CampaignID < keys[j].CampaignID
	})
	return keys
}

// PercentageChange is 100*(cur-prev)/prev; with prev == 0 it is 100 for any non-zero cur and 0 otherwise.
func PercentageChange(cur, prev float64) float64 {
	if prev != 0 {
		return (cur - prev) / prev * 100
	}
	if cur != 0 {
		return 100
	}
	return 0
}

// CalculateMetricChanges compares both periods for each key; absent values count as 0.
func CalculateMetricChanges(keys []CampaignKey, current, previous map[CampaignKey]PeriodValue) []MetricChange {
	out := make([]MetricChange, 0, len(keys))
	for _, k := range keys {
		cur, hasCur := current[k]
		prev, hasPrev := previous[k]

		name := ""
		if hasCur {
			name = cur.Name
		}
		if name == "" && hasPrev {
			name = prev.Name
		}
		if name == "" {
			name = "Campaign ID: " + k.CampaignID
		}

		out = append(out, MetricChange{
			CampaignIDPlatform: k.CampaignID,
			CampaignName:       name,
			Platform:           k.Platform,
			CurrentValue:       Round(cur.Value, 2),
			PreviousValue:      Round(prev.Value, 2),
			AbsoluteChange:     Round(cur.Value-prev.Value, 2),
			PercentageChange:   Round(PercentageChange(cur.Value, prev.Value), 1),
		})
	}
	return out
}

// TopMovers returns up to n positive changes (largest first) and n negative changes (most negative first).
func TopMovers(changes []MetricChange, n int) (gainers, decliners []MetricChange) {
	gainers = lo.Filter(changes, func(c MetricChange, _ int) bool { return c.AbsoluteChange > 0 })
	decliners = lo.Filter(changes, func(c MetricChange, _ int) bool { return c.AbsoluteChange < 0 })

	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].AbsoluteChange > gainers[j].AbsoluteChange })
	sort.SliceStable(decliners, func(i, j int) bool { return decliners[i].AbsoluteChange < decliners[j].AbsoluteChange })

	if len(gainers) > n {
		gainers = gainers[:n]
	}
	if len(decliners) > n {
		decliners = decliners[:n]
	}
	return gainers, decliners
}
