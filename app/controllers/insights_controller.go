package controllers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/analytics"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
)

const (
	anomalyBaselineDays  = 29
	scorecardRecentDays  = 14
	scorecardBaseDays    = 30
	defaultTrendDays     = 30
	defaultHistoryDays   = 14
	defaultProjectionDay = 7
)

// InsightsController serves the /ai-insights JSON APIs. All reads go through
// the fact repository and are scoped to the caller's active integrations.
type InsightsController struct {
	facts repository.CampaignFactRepository
	now   Clock
}

func NewInsightsController(facts repository.CampaignFactRepository, now Clock) *InsightsController {
	return &InsightsController{facts: facts, now: now.orDefault()}
}

type spendAnomaly struct {
	CampaignName string  `json:"campaign_name"`
	Platform     string  `json:"platform"`
	AnomalyDate  string  `json:"anomaly_date"`
	Value        float64 `json:"value"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stddev"`
	Direction    string  `json:"direction"`
	Message      string  `json:"message"`
}

type campaignSeries struct {
	name   string
	points []repository.CampaignDailyValue
}

// HandleSpendAnomalies checks yesterday's spend of every campaign against the 29 days before.
func (ic *InsightsController) HandleSpendAnomalies(c *fiber.Ctx) error {
	userID := currentUserID(c)
	checkDate := today(ic.now).AddDate(0, 0, -1)
	baselineStart := checkDate.AddDate(0, 0, -anomalyBaselineDays)

	rows, err := ic.facts.DailyCampaignSpend(userID, baselineStart, checkDate)
	if err != nil {
		return serverError(c, "load daily spend", err)
	}

	var order []analytics.CampaignKey
	series := map[analytics.CampaignKey]*campaignSeries{}
	for _, r := range rows {
		k := analytics.CampaignKey{CampaignID: r.CampaignID, Platform: string(r.Platform)}
		s, ok := series[k]
		if !ok {
			s = &campaignSeries{}
			series[k] = s
			order = append(order, k)
		}
		if r.CampaignName != "" {
			s.name = r.CampaignName
		}
		s.points = append(s.points, r)
	}

	out := make([]spendAnomaly, 0)
	for _, k := range order {
		s := series[k]
		var recent *float64
		baseline := make([]float64, 0, len(s.points))
		for _, p := range s.points {
			switch d := p.Date.Time(); {
			case d.Equal(checkDate):
				v := p.Value
				recent = &v
			case d.Before(checkDate):
				baseline = append(baseline, p.Value)
			}
		}
		if recent == nil {
			continue
		}
		a := analytics.DetectAnomaly(baseline, *recent)
		if a == nil {
			continue
		}
		out = append(out, spendAnomaly{
			CampaignName: s.name,
			Platform:     k.Platform,
			AnomalyDate:  isoDate(checkDate),
			Value:        a.Value,
			Mean:         analytics.Round(a.Mean, 2),
			StdDev:       analytics.Round(a.StdDev, 2),
			Direction:    a.Direction,
			Message:      a.SpendMessage(checkDate, len(baseline)),
		})
	}
	return c.JSON(out)
}

// HandleTopMovers compares per-campaign totals week over week (wow) or day over day (dod).
func (ic *InsightsController) HandleTopMovers(c *fiber.Ctx) error {
	metric := c.Query("metric", "spend")
	period := c.Query("period", "wow")
	if !analytics.IsBaseMetric(metric) {
		return badRequest(c, fmt.Sprintf("Invalid metric specified: '%s'. Valid options are 'spend', 'clicks', 'impressions', 'conversions'.", metric))
	}

	curEnd := today(ic.now).AddDate(0, 0, -1)
	curStart, prevEnd, prevStart := curEnd, curEnd.AddDate(0, 0, -1), curEnd.AddDate(0, 0, -1)
	if period != "dod" {
		curStart = curEnd.AddDate(0, 0, -6)
		prevEnd = curStart.AddDate(0, 0, -1)
		prevStart = prevEnd.AddDate(0, 0, -6)
	}

	userID := currentUserID(c)
	current, err := ic.periodValues(userID, metric, curStart, curEnd)
	if err != nil {
		return serverError(c, "load current period", err)
	}
	previous, err := ic.periodValues(userID, metric, prevStart, prevEnd)
	if err != nil {
		return serverError(c, "load previous period", err)
	}

	changes := analytics.CalculateMetricChanges(analytics.UnionKeys(current, previous), current, previous)
	gainers, decliners := analytics.TopMovers(changes, analytics.DefaultTopMovers)
	return c.JSON(fiber.Map{
		"gainers":   gainers,
		"decliners": decliners,
		"metric":    metric,
		"period":    period,
	})
}

func (ic *InsightsController) periodValues(userID uint, metric string, start, end time.Time) (map[analytics.CampaignKey]analytics.PeriodValue, error) {
	rows, err := ic.facts.CampaignMetricTotals(userID, metric, start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[analytics.CampaignKey]analytics.PeriodValue, len(rows))
	for _, r := range rows {
		out[analytics.CampaignKey{CampaignID: r.CampaignID, Platform: string(r.Platform)}] = analytics.PeriodValue{Name: r.CampaignName, Value: r.Total}
	}
	return out, nil
}

type periodSummary struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	CampaignName string `json:"campaign_name"`
	analytics.Metrics
}

// HandleCampaignScorecard compares the last 14 days of one campaign with the 30 days before.
func (ic *InsightsController) HandleCampaignScorecard(c *fiber.Ctx) error {
	campaignID := c.Query("campaign_id_platform")
	platformParam := c.Query("platform")
	if campaignID == "" || platformParam == "" {
		return badRequest(c, "'campaign_id_platform' and 'platform' parameters are required for the scorecard.")
	}
	platform, ok := models.ParsePlatform(platformParam)
	if !ok {
		return badRequest(c, fmt.Sprintf("Invalid platform specified: '%s'. Use 'MetaAds' or 'GoogleAds'.", platformParam))
	}

	recentEnd := today(ic.now).AddDate(0, 0, -1)
	recentStart := recentEnd.AddDate(0, 0, -(scorecardRecentDays - 1))
	baseEnd := recentStart.AddDate(0, 0, -1)
	baseStart := baseEnd.AddDate(0, 0, -(scorecardBaseDays - 1))

	userID := currentUserID(c)
	recent, err := ic.facts.CampaignTotals(userID, platform, campaignID, recentStart, recentEnd)
	if err != nil {
		return serverError(c, "load recent totals", err)
	}
	baseline, err := ic.facts.CampaignTotals(userID, platform, campaignID, baseStart, baseEnd)
	if err != nil {
		return serverError(c, "load baseline totals", err)
	}

	name, err := ic.facts.LatestCampaignName(userID, platform, campaignID)
	if err != nil {
		return serverError(c, "load campaign name", err)
	}
	if name == "" {
		name = c.Query("campaign_name")
	}
	if name == "" {
		name = "Campaign " + campaignID
	}

	recentMetrics := analytics.DeriveMetrics(toTotals(recent))
	baseMetrics := analytics.DeriveMetrics(toTotals(baseline))
	return c.JSON(fiber.Map{
		"campaign_name":           name,
		"platform":                string(platform),
		"recent_period_summary":   periodSummary{StartDate: isoDate(recentStart), EndDate: isoDate(recentEnd), CampaignName: name, Metrics: recentMetrics},
		"baseline_period_summary": periodSummary{StartDate: isoDate(baseStart), EndDate: isoDate(baseEnd), CampaignName: name, Metrics: baseMetrics},
		"observations":            analytics.BuildObservations(recentMetrics, baseMetrics),
	})
}

// HandleInsightsPage boots the insights page with the campaign picker contents.
func (ic *InsightsController) HandleInsightsPage(c *fiber.Ctx) error {
	list, err := ic.campaigns(currentUserID(c))
	if err != nil {
		return serverError(c, "list campaigns", err)
	}
	return c.JSON(fiber.Map{
		"campaigns": list,
		"today":     isoDate(today(ic.now)),
		"flash":     flash.Get(c),
	})
}

// HandleUserCampaignList feeds the campaign pickers.
func (ic *InsightsController) HandleUserCampaignList(c *fiber.Ctx) error {
	list, err := ic.campaigns(currentUserID(c))
	if err != nil {
		return serverError(c, "list campaigns", err)
	}
	return c.JSON(list)
}

func (ic *InsightsController) campaigns(userID uint) ([]repository.CampaignRef, error) {
	list, err := ic.facts.ListCampaigns(userID)
	if list == nil {
		list = []repository.CampaignRef{}
	}
	return list, err
}

type datedValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// seriesScope is the optional campaign/platform narrowing shared by trends and forecasts.
type seriesScope struct {
	filter       repository.FactFilter
	campaignName string
	platformName string
}

// parseSeriesScope validates campaign_id_platform/platform. purpose ends the
// "platform is required" message ("trend analysis", "forecasting").
func (ic *InsightsController) parseSeriesScope(c *fiber.Ctx, purpose string) (seriesScope, string, error) {
	scope := seriesScope{campaignName: "All Campaigns", platformName: "All Platforms"}
	campaignID := c.Query("campaign_id_platform")
	platformParam := c.Query("platform")
	if campaignID != "" && platformParam == "" {
		return scope, fmt.Sprintf("'platform' is required if 'campaign_id_platform' is specified for %s.", purpose), nil
	}
	if platformParam == "" {
		return scope, "", nil
	}
	platform, ok := models.ParsePlatform(platformParam)
	if !ok {
		return scope, fmt.Sprintf("Invalid platform: '%s'. Supported values are 'MetaAds' or 'GoogleAds'.", platformParam), nil
	}
	scope.filter.Platform = platform
	scope.platformName = string(platform)
	if campaignID == "" {
		scope.campaignName = "All Campaigns on " + string(platform)
		return scope, "", nil
	}
	scope.filter.CampaignID = campaignID
	name, err := ic.facts.LatestCampaignName(currentUserID(c), platform, campaignID)
	if err != nil {
		return scope, "", err
	}
	scope.campaignName = campaignID
	if name != "" {
		scope.campaignName = name
	}
	return scope, "", nil
}

// dailySeries evaluates metric for each day with data, rounded to cents.
func dailySeries(rows []repository.DailyTotals, metric string) ([]datedValue, []float64) {
	points := make([]datedValue, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		totals := r.Totals()
		v, _ := analytics.MetricValue(metric, toTotals(&totals))
		points = append(points, datedValue{Date: isoDate(r.Date.Time()), Value: analytics.Round(v, 2)})
		values = append(values, v)
	}
	return points, values
}

// HandleMetricTrends fits a line through the daily values of the last period_days days.
func (ic *InsightsController) HandleMetricTrends(c *fiber.Ctx) error {
	metric := c.Query("metric", "spend")
	periodDays, err := strconv.Atoi(c.Query("period_days", strconv.Itoa(defaultTrendDays)))
	if err != nil {
		return badRequest(c, "'period_days' must be an integer.")
	}
	if periodDays <= 1 {
		return badRequest(c, "'period_days' must be greater than 1 to calculate a meaningful trend.")
	}
	scope, msg, err := ic.parseSeriesScope(c, "trend analysis")
	if err != nil {
		return serverError(c, "resolve campaign", err)
	}
	if msg != "" {
		return badRequest(c, msg)
	}
	if !analytics.IsSeriesMetric(metric) {
		return badRequest(c, fmt.Sprintf("Unsupported metric for trend analysis: '%s'. Please choose from spend, clicks, impressions, conversions, ctr, cpc, cvr_clicks, cpa.", metric))
	}

	end := today(ic.now).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(periodDays - 1))
	rows, err := ic.facts.DailyTotals(currentUserID(c), scope.filter, start, end)
	if err != nil {
		return serverError(c, "load daily totals", err)
	}

	resp := fiber.Map{
		"metric":          metric,
		"period_days":     periodDays,
		"campaign_name":   scope.campaignName,
		"platform":        scope.platformName,
		"trend_data":      []datedValue{},
		"trend_line":      []datedValue{},
		"trend_direction": analytics.TrendNoData,
		"slope":           0.0,
		"message":         "Not enough historical data found for the selected criteria to calculate a trend.",
	}
	if len(rows) == 0 {
		return c.JSON(resp)
	}

	points, _ := dailySeries(rows, metric)
	resp["trend_data"] = points
	if len(points) < analytics.MinTrendPoints {
		resp["trend_direction"] = analytics.TrendInsufficientData
		resp["message"] = "Not enough data points (minimum 3 required) to calculate a reliable trend for the selected metric and period."
		return c.JSON(resp)
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	trend := analytics.AnalyzeTrend(values)
	slope := analytics.Round(trend.Slope, 2)
	intercept := analytics.Round(trend.Intercept, 2)

	message := fmt.Sprintf("The trend for %s is %s.", titleWords(metric), trend.Direction)
	if trend.Direction != analytics.TrendFlat {
		message += fmt.Sprintf(" The average change is approximately %.2f per day over the analyzed period.", slope)
	}
	resp["trend_direction"] = trend.Direction
	resp["slope"] = slope
	resp["message"] = message
	resp["trend_line"] = []datedValue{
		{Date: points[0].Date, Value: intercept},
		{Date: points[len(points)-1].Date, Value: analytics.Round(slope*float64(len(points)-1)+intercept, 2)},
	}
	return c.JSON(resp)
}

// HandleSimpleForecast projects the average of the last history_days forward.
func (ic *InsightsController) HandleSimpleForecast(c *fiber.Ctx) error {
	metric := c.Query("metric", "spend")
	historyDays, errH := strconv.Atoi(c.Query("history_days", strconv.Itoa(defaultHistoryDays)))
	projectionDays, errP := strconv.Atoi(c.Query("projection_days", strconv.Itoa(defaultProjectionDay)))
	if errH != nil || errP != nil {
		return badRequest(c, "'history_days' and 'projection_days' must be integers.")
	}
	if historyDays < 1 || projectionDays < 1 {
		return badRequest(c, "'history_days' and 'projection_days' must be at least 1.")
	}
	scope, msg, err := ic.parseSeriesScope(c, "forecasting")
	if err != nil {
		return serverError(c, "resolve campaign", err)
	}
	if msg != "" {
		return badRequest(c, msg)
	}
	if !analytics.IsSeriesMetric(metric) {
		return badRequest(c, fmt.Sprintf("Unsupported metric for forecast: '%s'. Valid: spend, clicks, impressions, conversions, ctr, cpc, cvr_clicks, cpa.", metric))
	}

	end := today(ic.now).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(historyDays - 1))
	rows, err := ic.facts.DailyTotals(currentUserID(c), scope.filter, start, end)
	if err != nil {
		return serverError(c, "load daily totals", err)
	}

	resp := fiber.Map{
		"metric":                   metric,
		"history_days":             historyDays,
		"projection_days":          projectionDays,
		"campaign_name":            scope.campaignName,
		"platform":                 scope.platformName,
		"historical_data":          []datedValue{},
		"average_daily_value_used": 0.0,
		"forecast_data":            []analytics.ForecastPoint{},
		"message":                  "Not enough historical data found for the selected criteria to generate a forecast.",
	}
	if len(rows) == 0 {
		return c.JSON(resp)
	}

	points, values := dailySeries(rows, metric)
	lastDate := rows[len(rows)-1].Date.Time()
	fc := analytics.NaiveForecast(values, projectionDays, lastDate)
	resp["historical_data"] = points
	resp["average_daily_value_used"] = fc.Average
	resp["forecast_data"] = fc.Points
	resp["message"] = forecastMessage(len(values))
	log.Debugf("forecast user=%d metric=%s days=%d avg=%.2f", currentUserID(c), metric, len(values), fc.Average)
	return c.JSON(resp)
}

func forecastMessage(n int) string {
	if n == 0 {
		return "No historical data was available to generate a forecast."
	}
	return fmt.Sprintf("Simple forecast based on the average daily value from the last %d days.", n)
}

func toTotals(t *repository.MetricTotals) analytics.Totals {
	if t == nil {
		return analytics.Totals{}
	}
	return analytics.Totals{Impressions: t.Impressions, Clicks: t.Clicks, Spend: t.Spend, Conversions: t.Conversions}
}
