package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Insights breakdown parameters accepted by the Graph API.
const (
	BreakdownDevicePlatform = "device_platform"
	BreakdownCountry        = "country"
	BreakdownAge            = "age"
	BreakdownGender         = "gender"
)

var Breakdowns = []string{BreakdownDevicePlatform, BreakdownCountry, BreakdownAge, BreakdownGender}

// InsightRow is one campaign/day row for a single breakdown dimension.
type InsightRow struct {
	CampaignID     string
	CampaignName   string
	DateStart      string
	BreakdownValue string
	Impressions    int64
	Clicks         int64
	Spend          decimal.Decimal
	Conversions    int64
}

type rawAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type rawInsight struct {
	CampaignID     string      `json:"campaign_id"`
	CampaignName   string      `json:"campaign_name"`
	DateStart      string      `json:"date_start"`
	Impressions    string      `json:"impressions"`
	Clicks         string      `json:"clicks"`
	Spend          string      `json:"spend"`
	Actions        []rawAction `json:"actions"`
	DevicePlatform string      `json:"device_platform"`
	Country        string      `json:"country"`
	Age            string      `json:"age"`
	Gender         string      `json:"gender"`
}

func (r rawInsight) breakdownValue(breakdown string) string {
	switch breakdown {
	case BreakdownDevicePlatform:
		return r.DevicePlatform
	case BreakdownCountry:
		return r.Country
	case BreakdownAge:
		return r.Age
	case BreakdownGender:
		return r.Gender
	}
	return ""
}

// purchaseConversions sums the values of every action whose type mentions "purchase".
func purchaseConversions(actions []rawAction) int64 {
	var total int64
	for _, a := range actions {
		if !strings.Contains(a.ActionType, "purchase") {
			continue
		}
		v, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			continue
		}
		total += int64(v)
	}
	return total
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}

func (r rawInsight) row(breakdown string) InsightRow {
	spend, err := decimal.NewFromString(r.Spend)
	if err != nil {
		spend = decimal.Zero
	}
	return InsightRow{
		CampaignID:     r.CampaignID,
		CampaignName:   r.CampaignName,
		DateStart:      r.DateStart,
		BreakdownValue: r.breakdownValue(breakdown),
		Impressions:    parseCount(r.Impressions),
		Clicks:         parseCount(r.Clicks),
		Spend:          spend,
		Conversions:    purchaseConversions(r.Actions),
	}
}

// Insights pulls daily campaign-level insights for one breakdown, following paging.next.
func (s *Session) Insights(ctx context.Context, adAccountID, breakdown string, from, to time.Time) ([]InsightRow, error) {
	timeRange, err := json.Marshal(map[string]string{
		"since": from.Format("2006-01-02"),
		"until": to.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("level", "campaign")
	q.Set("fields", "campaign_id,campaign_name,impressions,clicks,spend,actions")
	q.Set("breakdowns", breakdown)
	q.Set("time_range", string(timeRange))
	q.Set("time_increment", "1")
	q.Set("limit", "500")
	q.Set("access_token", s.accessToken)

	var rows []InsightRow
	next := s.client.graphURL(AccountPath(adAccountID)+"/insights", q)
	for page := 0; next != ""; page++ {
		var body struct {
			Data   []rawInsight `json:"data"`
			Paging paging       `json:"paging"`
		}
		if err := s.client.get(ctx, next, &body); err != nil {
			return nil, fmt.Errorf("insights %s page %d: %w", breakdown, page, err)
		}
		for _, r := range body.Data {
			rows = append(rows, r.row(breakdown))
		}
		next = body.Paging.Next
	}
	return rows, nil
}
