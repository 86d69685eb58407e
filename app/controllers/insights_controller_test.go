package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AdInsights/app/models"
)

func insightsApp(env *testEnv, userID uint) *fiber.App {
	ic := NewInsightsController(env.repos.Fact, fixedClock)
	return newApp(userID, false, func(app *fiber.App) {
		app.Get("/page", ic.HandleInsightsPage)
		app.Get("/anomaly", ic.HandleSpendAnomalies)
		app.Get("/top_movers", ic.HandleTopMovers)
		app.Get("/scorecard", ic.HandleCampaignScorecard)
		app.Get("/campaigns", ic.HandleUserCampaignList)
		app.Get("/trends", ic.HandleMetricTrends)
		app.Get("/forecast", ic.HandleSimpleForecast)
	})
}

func TestSpendAnomalyFlagsCollapseAgainstFlatBaseline(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "anomaly@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformGoogleAds, models.IntegrationStatusActive)
	for d := -9; d <= -2; d++ {
		env.seedOverall(t, integ, "c1", day(d), 1000, 50, "100.00", 2)
		env.seedOverall(t, integ, "c2", day(d), 1000, 50, "100.00", 2)
	}
	env.seedOverall(t, integ, "c1", day(-1), 100, 5, "10.00", 0)

	resp := get(t, insightsApp(env, u.ID), "/anomaly")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []spendAnomaly
	decodeJSON(t, resp, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "Campaign c1", out[0].CampaignName)
	assert.Equal(t, "GoogleAds", out[0].Platform)
	assert.Equal(t, "2024-03-14", out[0].AnomalyDate)
	assert.Equal(t, "low", out[0].Direction)
	assert.Equal(t, 10.0, out[0].Value)
	assert.Equal(t, 100.0, out[0].Mean)
	assert.Contains(t, out[0].Message, "dropped significantly")
}

func TestSpendAnomalyIgnoresInactiveIntegrations(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "revoked@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformMetaAds, models.IntegrationStatusRevoked)
	for d := -9; d <= -2; d++ {
		env.seedOverall(t, integ, "m1", day(d), 1000, 50, "100.00", 2)
	}
	env.seedOverall(t, integ, "m1", day(-1), 100, 5, "1.00", 0)

	var out []spendAnomaly
	decodeJSON(t, get(t, insightsApp(env, u.ID), "/anomaly"), &out)
	assert.Empty(t, out)
}

func TestTopMoversWeekOverWeek(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "movers@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformGoogleAds, models.IntegrationStatusActive)
	env.seedOverall(t, integ, "c1", day(-10), 10, 1, "100.00", 0)
	env.seedOverall(t, integ, "c1", day(-3), 10, 1, "50.00", 0)
	env.seedOverall(t, integ, "c2", day(-10), 10, 1, "100.00", 0)
	env.seedOverall(t, integ, "c2", day(-3), 10, 1, "200.00", 0)

	resp := get(t, insightsApp(env, u.ID), "/top_movers?metric=spend&period=wow")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Gainers   []map[string]any `json:"gainers"`
		Decliners []map[string]any `json:"decliners"`
		Metric    string           `json:"metric"`
		Period    string           `json:"period"`
	}
	decodeJSON(t, resp, &out)
	require.Len(t, out.Gainers, 1)
	require.Len(t, out.Decliners, 1)
	assert.Equal(t, "c2", out.Gainers[0]["campaign_id_platform"])
	assert.Equal(t, 100.0, out.Gainers[0]["percentage_change"])
	assert.Equal(t, "c1", out.Decliners[0]["campaign_id_platform"])
	assert.Equal(t, -50.0, out.Decliners[0]["absolute_change"])
	assert.Equal(t, "spend", out.Metric)
	assert.Equal(t, "wow", out.Period)
}

func TestInsightsRejectInvalidParameters(t *testing.T) {
	env := newTestEnv(t)
	app := insightsApp(env, 1)

	tests := []struct {
		target string
		msg    string
	}{
		{"/top_movers?metric=ctr", "Invalid metric specified: 'ctr'. Valid options are 'spend', 'clicks', 'impressions', 'conversions'."},
		{"/scorecard?platform=GoogleAds", "'campaign_id_platform' and 'platform' parameters are required for the scorecard."},
		{"/scorecard?campaign_id_platform=c1&platform=TikTok", "Invalid platform specified: 'TikTok'. Use 'MetaAds' or 'GoogleAds'."},
		{"/trends?period_days=1", "'period_days' must be greater than 1 to calculate a meaningful trend."},
		{"/trends?campaign_id_platform=c1", "'platform' is required if 'campaign_id_platform' is specified for trend analysis."},
		{"/trends?metric=roas", "Unsupported metric for trend analysis: 'roas'. Please choose from spend, clicks, impressions, conversions, ctr, cpc, cvr_clicks, cpa."},
		{"/forecast?history_days=0", "'history_days' and 'projection_days' must be at least 1."},
		{"/forecast?projection_days=x", "'history_days' and 'projection_days' must be integers."},
	}
	for _, tt := range tests {
		resp := get(t, app, tt.target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tt.target, resp.StatusCode)
		}
		var body map[string]string
		decodeJSON(t, resp, &body)
		if body["error"] != tt.msg {
			t.Fatalf("%s: error = %q, want %q", tt.target, body["error"], tt.msg)
		}
	}
}

func TestCampaignScorecard(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "scorecard@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformMetaAds, models.IntegrationStatusActive)
	env.seedOverall(t, integ, "m1", day(-2), 1000, 100, "50.00", 10)
	env.seedOverall(t, integ, "m1", day(-20), 1000, 100, "100.00", 5)

	resp := get(t, insightsApp(env, u.ID), "/scorecard?campaign_id_platform=m1&platform=MetaAds")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		CampaignName string        `json:"campaign_name"`
		Platform     string        `json:"platform"`
		Recent       periodSummary `json:"recent_period_summary"`
		Baseline     periodSummary `json:"baseline_period_summary"`
		Observations []struct {
			Metric string `json:"metric"`
			Status string `json:"status"`
		} `json:"observations"`
	}
	decodeJSON(t, resp, &out)
	assert.Equal(t, "Campaign m1", out.CampaignName)
	assert.Equal(t, "MetaAds", out.Platform)
	assert.Equal(t, "2024-03-01", out.Recent.StartDate)
	assert.Equal(t, "2024-03-14", out.Recent.EndDate)
	assert.Equal(t, "2024-01-31", out.Baseline.StartDate)
	assert.Equal(t, "2024-02-29", out.Baseline.EndDate)
	assert.Equal(t, 50.0, out.Recent.Spend)
	assert.Equal(t, 5.0, out.Recent.CPA)
	assert.Equal(t, 20.0, out.Baseline.CPA)

	statuses := map[string]string{}
	for _, o := range out.Observations {
		statuses[o.Metric] = o.Status
	}
	assert.Equal(t, "positive", statuses["CPA"])
	assert.Equal(t, "neutral", statuses["Spend"])
}

func TestUserCampaignListIsEmptyArrayWithoutData(t *testing.T) {
	env := newTestEnv(t)
	resp := get(t, insightsApp(env, 42), "/campaigns")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []map[string]any
	decodeJSON(t, resp, &out)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestInsightsPageListsCampaigns(t *testing.T) {
	env := newTestEnv(t)
	resp := get(t, insightsApp(env, 42), "/page")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Campaigns []map[string]any `json:"campaigns"`
		Today     string           `json:"today"`
	}
	decodeJSON(t, resp, &out)
	assert.NotNil(t, out.Campaigns)
	assert.Equal(t, "2024-03-15", out.Today)
}

func TestMetricTrends(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "trend@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformGoogleAds, models.IntegrationStatusActive)
	for i, spend := range []string{"10.00", "20.00", "30.00", "40.00", "50.00"} {
		env.seedOverall(t, integ, "c1", day(-5+i), 100, 10, spend, 1)
	}

	resp := get(t, insightsApp(env, u.ID), "/trends?metric=spend&period_days=7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decodeJSON(t, resp, &out)
	assert.Equal(t, "upward", out["trend_direction"])
	assert.Equal(t, 10.0, out["slope"])
	assert.Equal(t, "All Campaigns", out["campaign_name"])
	assert.Len(t, out["trend_data"], 5)
	assert.Equal(t, "The trend for Spend is upward. The average change is approximately 10.00 per day over the analyzed period.", out["message"])

	line := out["trend_line"].([]any)
	require.Len(t, line, 2)
	assert.Equal(t, 10.0, line[0].(map[string]any)["value"])
	assert.Equal(t, 50.0, line[1].(map[string]any)["value"])
}

func TestMetricTrendsWithoutData(t *testing.T) {
	env := newTestEnv(t)
	var out map[string]any
	decodeJSON(t, get(t, insightsApp(env, 7), "/trends?platform=MetaAds"), &out)
	assert.Equal(t, "nodata", out["trend_direction"])
	assert.Equal(t, "All Campaigns on MetaAds", out["campaign_name"])
}

func TestSimpleForecast(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "forecast@example.com")
	integ := env.seedIntegration(t, u.ID, models.PlatformGoogleAds, models.IntegrationStatusActive)
	for i, spend := range []string{"10.00", "12.00", "11.00", "13.00", "14.00"} {
		env.seedOverall(t, integ, "c1", day(-5+i), 100, 10, spend, 1)
	}

	resp := get(t, insightsApp(env, u.ID), "/forecast?metric=spend&history_days=5&projection_days=3&campaign_id_platform=c1&platform=GoogleAds")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		CampaignName string  `json:"campaign_name"`
		Average      float64 `json:"average_daily_value_used"`
		Forecast     []struct {
			Date  string  `json:"date"`
			Value float64 `json:"projected_value"`
		} `json:"forecast_data"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp, &out)
	assert.Equal(t, "Campaign c1", out.CampaignName)
	assert.Equal(t, 12.0, out.Average)
	require.Len(t, out.Forecast, 3)
	for i, p := range out.Forecast {
		assert.Equal(t, fmt.Sprintf("2024-03-%02d", 15+i), p.Date)
		assert.Equal(t, 12.0, p.Value)
	}
	assert.Equal(t, "Simple forecast based on the average daily value from the last 5 days.", out.Message)
}
