package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/analytics"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
)

// monthlyBudget is the fixed budget the budget status widget compares against.
const monthlyBudget = 20000.0

const (
	rangeLast7Days  = "last_7_days"
	rangeLast30Days = "last_30_days"
	rangeCustom     = "custom"
	platformAll     = "all"
)

var (
	deviceColors   = []string{"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899"}
	audienceColors = []string{"#4A5568", "#A0AEC0", "#718096", "#E2E8F0", "#CBD5E0", "#A0AEC0", "#718096", "#4FD1C5", "#68D391"}
	countryColors  = []string{"#D97706", "#059669", "#7C3AED", "#DB2777", "#2563EB", "#FBBF24", "#4ADE80", "#A78BFA"}
)

type DashboardController struct {
	users        repository.UserRepository
	integrations repository.IntegrationRepository
	facts        repository.CampaignFactRepository
	now          Clock
}

func NewDashboardController(repos *repository.Repositories, now Clock) *DashboardController {
	return &DashboardController{
		users:        repos.User,
		integrations: repos.Integration,
		facts:        repos.Fact,
		now:          now.orDefault(),
	}
}

// HandleDashboard returns the page summary the dashboard front end boots from.
func (dc *DashboardController) HandleDashboard(c *fiber.Ctx) error {
	userID := currentUserID(c)
	user, err := dc.users.GetByID(userID)
	if err != nil {
		return serverError(c, "load user", err)
	}
	integrations, err := dc.integrations.ListByUser(userID)
	if err != nil {
		return serverError(c, "list integrations", err)
	}
	if integrations == nil {
		integrations = []models.Integration{}
	}
	return c.JSON(fiber.Map{
		"user":         user,
		"integrations": integrations,
		"flash":        flash.Get(c),
	})
}

// parseDateRange resolves date_range (last_7_days, last_30_days or custom with
// start_date/end_date). Unknown ranges fall back to defaultRange. A non-empty
// message means the request is invalid.
func parseDateRange(c *fiber.Ctx, today time.Time, defaultRange string) (start, end time.Time, message string) {
	switch c.Query("date_range", defaultRange) {
	case rangeLast7Days:
		return today.AddDate(0, 0, -6), today, ""
	case rangeLast30Days:
		return today.AddDate(0, 0, -29), today, ""
	case rangeCustom:
		startParam, endParam := c.Query("start_date"), c.Query("end_date")
		if startParam == "" || endParam == "" {
			return start, end, "Custom date range requires 'start_date' and 'end_date' parameters (YYYY-MM-DD)."
		}
		var errS, errE error
		start, errS = time.Parse("2006-01-02", startParam)
		end, errE = time.Parse("2006-01-02", endParam)
		if errS != nil || errE != nil {
			return start, end, "Invalid date format for custom range. Please use YYYY-MM-DD."
		}
		if start.After(end) {
			return start, end, "Start date cannot be after end date for custom range."
		}
		return start, end, ""
	}
	if defaultRange == rangeLast7Days {
		return today.AddDate(0, 0, -6), today, ""
	}
	return today.AddDate(0, 0, -29), today, ""
}

// percentageChange renders the change against the previous period. A zero
// previous value yields "N/A" (nil) or "+100.0%".
func percentageChange(current, previous float64) (string, *float64) {
	if previous == 0 {
		if current == 0 {
			return "N/A", nil
		}
		v := 100.0
		return "+100.0%", &v
	}
	v := (current - previous) / previous * 100
	rounded := analytics.Round(v, 1)
	return fmt.Sprintf("%+.1f%%", v), &rounded
}

func costPerConversion(t *repository.MetricTotals) float64 {
	if t == nil || t.Conversions == 0 {
		return 0
	}
	return t.Spend / float64(t.Conversions)
}

// HandleKPIs returns spend, conversions and cost per conversion plus their
// change against the preceding period of equal length.
func (dc *DashboardController) HandleKPIs(c *fiber.Ctx) error {
	start, end, msg := parseDateRange(c, today(dc.now), rangeLast7Days)
	if msg != "" {
		return badRequest(c, msg)
	}
	var filter repository.FactFilter
	if p := c.Query("platform", platformAll); p != platformAll {
		platform, ok := models.ParsePlatform(p)
		if !ok {
			return badRequest(c, fmt.Sprintf("Invalid platform: '%s'. Supported values are 'MetaAds', 'GoogleAds', or 'all'.", p))
		}
		filter.Platform = platform
	}

	userID := currentUserID(c)
	current, err := dc.facts.PeriodTotals(userID, filter, start, end)
	if err != nil {
		return serverError(c, "load current totals", err)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	prevEnd := start.AddDate(0, 0, -1)
	previous, err := dc.facts.PeriodTotals(userID, filter, prevEnd.AddDate(0, 0, -(days-1)), prevEnd)
	if err != nil {
		return serverError(c, "load previous totals", err)
	}

	cpc, prevCPC := costPerConversion(current), costPerConversion(previous)
	spendChange, spendVal := percentageChange(current.Spend, previous.Spend)
	convChange, convVal := percentageChange(float64(current.Conversions), float64(previous.Conversions))
	cpcChange, cpcVal := percentageChange(cpc, prevCPC)

	return c.JSON(fiber.Map{
		"total_spend":                    current.Spend,
		"total_conversions":              current.Conversions,
		"cost_per_conversion":            cpc,
		"total_spend_change":             spendChange,
		"total_spend_change_val":         spendVal,
		"total_conversions_change":       convChange,
		"total_conversions_change_val":   convVal,
		"cost_per_conversion_change":     cpcChange,
		"cost_per_conversion_change_val": cpcVal,
	})
}

// HandleBudgetStatus compares month-to-date spend with the monthly budget.
func (dc *DashboardController) HandleBudgetStatus(c *fiber.Ctx) error {
	day := today(dc.now)
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	totals, err := dc.facts.PeriodTotals(currentUserID(c), repository.FactFilter{}, monthStart, day)
	if err != nil {
		return serverError(c, "load month totals", err)
	}
	return c.JSON(fiber.Map{
		"total_budget":               monthlyBudget,
		"current_spend":              totals.Spend,
		"budget_utilized_percentage": analytics.Round(totals.Spend/monthlyBudget*100, 2),
	})
}

type chartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
}

type chartData struct {
	Labels   []string       `json:"labels"`
	Datasets []chartDataset `json:"datasets"`
}

// HandlePerformanceBreakdown returns one zero-filled daily series per platform.
func (dc *DashboardController) HandlePerformanceBreakdown(c *fiber.Ctx) error {
	metric := c.Query("metric", "spend")
	start, end, msg := parseDateRange(c, today(dc.now), rangeLast30Days)
	if msg != "" {
		return badRequest(c, msg)
	}
	if !analytics.IsBaseMetric(metric) {
		if metric == "cost_per_conversion" {
			return badRequest(c, fmt.Sprintf("Calculated metric '%s' is not directly supported by this endpoint for time-series breakdown. Please choose a base metric like spend or conversions.", metric))
		}
		return badRequest(c, fmt.Sprintf("Invalid metric: '%s'. Please choose from spend, clicks, impressions, or conversions.", metric))
	}
	platforms := models.Platforms
	if p := c.Query("platform", platformAll); p != platformAll {
		platform, ok := models.ParsePlatform(p)
		if !ok {
			return badRequest(c, fmt.Sprintf("Invalid platform filter: '%s'.", p))
		}
		platforms = []models.Platform{platform}
	}

	rows, err := dc.facts.DailyPlatformMetric(currentUserID(c), metric, start, end)
	if err != nil {
		return serverError(c, "load platform series", err)
	}

	out := chartData{Labels: []string{}}
	index := map[string]int{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		index[isoDate(d)] = len(out.Labels)
		out.Labels = append(out.Labels, isoDate(d))
	}
	series := map[models.Platform][]float64{}
	for _, p := range platforms {
		series[p] = make([]float64, len(out.Labels))
	}
	for _, r := range rows {
		data, ok := series[r.Platform]
		if !ok {
			continue
		}
		if i, ok := index[isoDate(r.Date.Time())]; ok {
			data[i] = r.Value
		}
	}
	out.Datasets = lo.Map(platforms, func(p models.Platform, _ int) chartDataset {
		return chartDataset{Label: string(p), Data: series[p]}
	})
	return c.JSON(out)
}

// breakdownChart describes one of the bar chart endpoints.
type breakdownChart struct {
	breakdownType string
	metricError   string
	colors        []string
	label         func(metric, platform string) string
	emptyLabel    func(metric string) string
}

func (dc *DashboardController) renderBreakdown(c *fiber.Ctx, chart breakdownChart) error {
	start, end, msg := parseDateRange(c, today(dc.now), rangeLast30Days)
	if msg != "" {
		return badRequest(c, msg)
	}
	metric := c.Query("metric", "spend")
	if !analytics.IsBaseMetric(metric) {
		return badRequest(c, fmt.Sprintf(chart.metricError, metric))
	}
	platformParam := c.Query("platform", platformAll)
	var filter repository.FactFilter
	if platformParam != platformAll {
		platform, ok := models.ParsePlatform(platformParam)
		if !ok {
			return badRequest(c, fmt.Sprintf("Invalid platform: '%s'.", platformParam))
		}
		filter.Platform = platform
	}

	rows, err := dc.facts.BreakdownTotals(currentUserID(c), chart.breakdownType, metric, filter, start, end)
	if err != nil {
		return serverError(c, "load "+chart.breakdownType+" breakdown", err)
	}
	if len(rows) == 0 {
		return c.JSON(chartData{
			Labels:   []string{},
			Datasets: []chartDataset{{Label: chart.emptyLabel(metric), Data: []float64{}, BackgroundColor: []string{}}},
		})
	}

	labels := lo.Map(rows, func(r repository.BreakdownTotal, _ int) string {
		return lo.Ternary(r.BreakdownValue == "", "Unknown", r.BreakdownValue)
	})
	values := lo.Map(rows, func(r repository.BreakdownTotal, _ int) float64 { return r.Total })
	return c.JSON(chartData{
		Labels: labels,
		Datasets: []chartDataset{{
			Label:           chart.label(metric, platformParam),
			Data:            values,
			BackgroundColor: chart.colors[:min(len(labels), len(chart.colors))],
		}},
	})
}

func platformSuffix(platform string) string {
	if platform == platformAll {
		return "All Platforms"
	}
	return platform
}

func (dc *DashboardController) HandleDeviceBreakdown(c *fiber.Ctx) error {
	return dc.renderBreakdown(c, breakdownChart{
		breakdownType: models.BreakdownDevice,
		metricError:   "Invalid metric: '%s'. Supported metrics are spend, clicks, impressions, conversions.",
		colors:        deviceColors,
		label: func(metric, platform string) string {
			return fmt.Sprintf("%s by Device (%s)", titleWords(metric), platformSuffix(platform))
		},
		emptyLabel: func(metric string) string {
			return fmt.Sprintf("No %s data for selected device breakdown", strings.ReplaceAll(metric, "_", " "))
		},
	})
}

func (dc *DashboardController) HandleCountryBreakdown(c *fiber.Ctx) error {
	return dc.renderBreakdown(c, breakdownChart{
		breakdownType: models.BreakdownCountry,
		metricError:   "Invalid metric: '%s'. Supported metrics are spend, clicks, impressions, conversions.",
		colors:        countryColors,
		label: func(metric, platform string) string {
			return fmt.Sprintf("%s by Country (%s)", titleWords(metric), platformSuffix(platform))
		},
		emptyLabel: func(metric string) string {
			return fmt.Sprintf("No %s data for selected country breakdown", strings.ReplaceAll(metric, "_", " "))
		},
	})
}

// HandleAudienceBreakdown charts age_range or gender segments.
func (dc *DashboardController) HandleAudienceBreakdown(c *fiber.Ctx) error {
	dimension := c.Query("dimension", models.BreakdownAgeRange)
	if dimension != models.BreakdownAgeRange && dimension != models.BreakdownGender {
		return badRequest(c, fmt.Sprintf("Invalid dimension: '%s'. Supported dimensions are 'age_range' or 'gender'.", dimension))
	}
	dimensionTitle := titleWords(dimension)
	return dc.renderBreakdown(c, breakdownChart{
		breakdownType: dimension,
		metricError:   "Invalid metric: '%s'. Supported: spend, clicks, impressions, conversions.",
		colors:        audienceColors,
		label: func(metric, platform string) string {
			display := "All Platforms"
			if platform != platformAll {
				display = strings.Replace(platform, "Ads", " Ads", 1)
			}
			return fmt.Sprintf("%s by %s (%s)", titleWords(metric), dimensionTitle, display)
		},
		emptyLabel: func(metric string) string {
			return fmt.Sprintf("No %s data for selected %s breakdown", strings.ReplaceAll(metric, "_", " "), strings.ToLower(dimensionTitle))
		},
	})
}
