package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AdInsights/app/models"
)

var ErrUnknownMetric = errors.New("unknown metric")

var factKeyColumns = []clause.Column{
	{Name: "integration_id"},
	{Name: "campaign_id_platform"},
	{Name: "date"},
	{Name: "breakdown_type"},
	{Name: "breakdown_value"},
}

var factUpdateColumns = []string{
	"platform", "campaign_name_platform", "impressions", "clicks", "spend", "conversions", "updated_at",
}

type campaignFactRepository struct {
	db *gorm.DB
}

// NewCampaignFactRepository creates a new campaign fact repository instance
func NewCampaignFactRepository(db *gorm.DB) CampaignFactRepository {
	return &campaignFactRepository{db: db}
}

func (r *campaignFactRepository) WithTx(tx *gorm.DB) CampaignFactRepository {
	return &campaignFactRepository{db: tx}
}

// Transaction runs fn inside one database transaction; an error rolls back everything fn wrote.
func (r *campaignFactRepository) Transaction(fn func(repo CampaignFactRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Upsert inserts the fact or overwrites metrics and name of the row with the same five-part key.
func (r *campaignFactRepository) Upsert(fact *models.CampaignFact) error {
	fact.Date = models.FactDate(fact.Date)
	fact.Spend = fact.Spend.Round(2)
	return r.db.Clauses(clause.OnConflict{
		Columns:   factKeyColumns,
		DoUpdates: clause.AssignmentColumns(factUpdateColumns),
	}).Create(fact).Error
}

// UpsertBatch writes all facts in a single transaction.
func (r *campaignFactRepository) UpsertBatch(facts []models.CampaignFact) error {
	if len(facts) == 0 {
		return nil
	}
	return r.Transaction(func(repo CampaignFactRepository) error {
		for i := range facts {
			if err := repo.Upsert(&facts[i]); err != nil {
				return fmt.Errorf("upsert fact campaign=%s date=%s %s=%s: %w",
					facts[i].CampaignIDPlatform, facts[i].Date.Format("2006-01-02"),
					facts[i].BreakdownType, facts[i].BreakdownValue, err)
			}
		}
		return nil
	})
}

type deviceSum struct {
	FactRows    int64
	Impressions int64
	Clicks      int64
	Spend       decimal.Decimal
	Conversions int64
}

// RecomputeOverall rewrites the overall row of key from the device rows of the same campaign and day.
// key.Name is the campaign name of the current run; when empty the newest device row's name is kept.
// It returns false without writing when no device rows exist.
func (r *campaignFactRepository) RecomputeOverall(integrationID uint, platform models.Platform, key CampaignDay) (bool, error) {
	date := models.FactDate(key.Date)
	devices := func() *gorm.DB {
		return r.db.Model(&models.CampaignFact{}).
			Where("integration_id = ? AND campaign_id_platform = ? AND date = ? AND breakdown_type = ?",
				integrationID, key.CampaignID, date, models.BreakdownDevice)
	}
	var sum deviceSum
	err := devices().
		Select("COUNT(*) AS fact_rows, COALESCE(SUM(impressions),0) AS impressions, COALESCE(SUM(clicks),0) AS clicks, " +
			"COALESCE(SUM(spend),0) AS spend, COALESCE(SUM(conversions),0) AS conversions").
		Scan(&sum).Error
	if err != nil {
		return false, err
	}
	if sum.FactRows == 0 {
		return false, nil
	}

	name := key.Name
	if name == "" {
		var newest models.CampaignFact
		if err := devices().Select("campaign_name_platform").Order("updated_at DESC, id DESC").Limit(1).Take(&newest).Error; err != nil {
			return false, err
		}
		name = newest.CampaignNamePlatform
	}

	overall := models.CampaignFact{
		IntegrationID:        integrationID,
		Platform:             platform,
		CampaignIDPlatform:   key.CampaignID,
		CampaignNamePlatform: name,
		Date:                 date,
		BreakdownType:        models.BreakdownOverall,
		BreakdownValue:       models.BreakdownValueNone,
		Impressions:          sum.Impressions,
		Clicks:               sum.Clicks,
		Spend:                sum.Spend,
		Conversions:          sum.Conversions,
	}
	if err := r.Upsert(&overall); err != nil {
		return false, err
	}
	return true, nil
}

// RecomputeOverallBatch recomputes every key in one transaction and returns the number of overall rows written.
func (r *campaignFactRepository) RecomputeOverallBatch(integrationID uint, platform models.Platform, keys []CampaignDay) (int, error) {
	written := 0
	err := r.Transaction(func(repo CampaignFactRepository) error {
		written = 0
		for _, k := range keys {
			ok, err := repo.RecomputeOverall(integrationID, platform, k)
			if err != nil {
				return fmt.Errorf("rollup campaign=%s date=%s: %w", k.CampaignID, k.Date.Format("2006-01-02"), err)
			}
			if ok {
				written++
			}
		}
		return nil
	})
	return written, err
}

func (r *campaignFactRepository) ListByCampaignDay(integrationID uint, campaignID string, date time.Time) ([]models.CampaignFact, error) {
	var facts []models.CampaignFact
	err := r.db.Where("integration_id = ? AND campaign_id_platform = ? AND date = ?", integrationID, campaignID, models.FactDate(date)).
		Order("breakdown_type ASC, breakdown_value ASC").
		Find(&facts).Error
	return facts, err
}

func (r *campaignFactRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.CampaignFact{}).Count(&n).Error
	return n, err
}

// userFacts scopes a query to the facts of the user's active integrations.
func (r *campaignFactRepository) userFacts(userID uint) *gorm.DB {
	return r.db.Model(&models.CampaignFact{}).
		Joins("JOIN integrations ON integrations.id = campaign_data.integration_id").
		Where("integrations.user_id = ? AND integrations.status = ?", userID, models.IntegrationStatusActive)
}

// overallFacts additionally restricts to overall rows so that totals never count a breakdown twice.
func (r *campaignFactRepository) overallFacts(userID uint, start, end time.Time) *gorm.DB {
	return r.userFacts(userID).
		Where("campaign_data.breakdown_type = ?", models.BreakdownOverall).
		Where("campaign_data.date BETWEEN ? AND ?", models.FactDate(start), models.FactDate(end))
}

func applyFilter(q *gorm.DB, f FactFilter) *gorm.DB {
	if f.Platform != "" {
		q = q.Where("campaign_data.platform = ?", f.Platform)
	}
	if f.CampaignID != "" {
		q = q.Where("campaign_data.campaign_id_platform = ?", f.CampaignID)
	}
	return q
}

const totalsSelect = "COALESCE(SUM(campaign_data.impressions),0) AS impressions, COALESCE(SUM(campaign_data.clicks),0) AS clicks, " +
	"COALESCE(SUM(campaign_data.spend),0) AS spend, COALESCE(SUM(campaign_data.conversions),0) AS conversions"

type campaignKey struct {
	id       string
	platform models.Platform
}

// latestNames maps every campaign of the user to the name on its most recent fact,
// so a renamed campaign shows its current name everywhere.
func (r *campaignFactRepository) latestNames(userID uint) (map[campaignKey]string, error) {
	latest := r.userFacts(userID).
		Select("campaign_data.campaign_id_platform AS campaign_id, campaign_data.platform AS platform, MAX(campaign_data.date) AS max_date").
		Group("campaign_data.campaign_id_platform, campaign_data.platform")
	var rows []struct {
		CampaignID string
		Platform   models.Platform
		Name       string
	}
	err := r.userFacts(userID).
		Joins("JOIN (?) latest ON latest.campaign_id = campaign_data.campaign_id_platform AND latest.platform = campaign_data.platform AND latest.max_date = campaign_data.date", latest).
		Select("campaign_data.campaign_id_platform AS campaign_id, campaign_data.platform AS platform, campaign_data.campaign_name_platform AS name").
		Order("campaign_data.updated_at DESC, campaign_data.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	names := make(map[campaignKey]string, len(rows))
	for _, row := range rows {
		k := campaignKey{id: row.CampaignID, platform: row.Platform}
		if _, ok := names[k]; !ok {
			names[k] = row.Name
		}
	}
	return names, nil
}

// DailyCampaignSpend returns the daily overall spend per campaign, ordered by campaign and date.
func (r *campaignFactRepository) DailyCampaignSpend(userID uint, start, end time.Time) ([]CampaignDailyValue, error) {
	var out []CampaignDailyValue
	err := r.overallFacts(userID, start, end).
		Select("campaign_data.campaign_id_platform AS campaign_id, " +
			"campaign_data.platform AS platform, campaign_data.date AS date, COALESCE(SUM(campaign_data.spend),0) AS value").
		Group("campaign_data.campaign_id_platform, campaign_data.platform, campaign_data.date").
		Order("campaign_data.platform, campaign_data.campaign_id_platform, campaign_data.date").
		Scan(&out).Error
	if err != nil || len(out) == 0 {
		return out, err
	}
	names, err := r.latestNames(userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CampaignName = names[campaignKey{id: out[i].CampaignID, platform: out[i].Platform}]
	}
	return out, nil
}

// CampaignMetricTotals sums one base metric per campaign over [start, end].
func (r *campaignFactRepository) CampaignMetricTotals(userID uint, metric string, start, end time.Time) ([]CampaignMetricTotal, error) {
	col, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	var out []CampaignMetricTotal
	err := r.overallFacts(userID, start, end).
		Select("campaign_data.campaign_id_platform AS campaign_id, " +
			"campaign_data.platform AS platform, COALESCE(SUM(" + col + "),0) AS total").
		Group("campaign_data.campaign_id_platform, campaign_data.platform").
		Order("campaign_data.platform, campaign_data.campaign_id_platform").
		Scan(&out).Error
	if err != nil || len(out) == 0 {
		return out, err
	}
	names, err := r.latestNames(userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CampaignName = names[campaignKey{id: out[i].CampaignID, platform: out[i].Platform}]
	}
	return out, nil
}

func (r *campaignFactRepository) CampaignTotals(userID uint, platform models.Platform, campaignID string, start, end time.Time) (*MetricTotals, error) {
	return r.PeriodTotals(userID, FactFilter{Platform: platform, CampaignID: campaignID}, start, end)
}

// LatestCampaignName returns the name stored on the most recent fact of the campaign, or "".
func (r *campaignFactRepository) LatestCampaignName(userID uint, platform models.Platform, campaignID string) (string, error) {
	var fact models.CampaignFact
	err := r.userFacts(userID).
		Select("campaign_data.campaign_name_platform").
		Where("campaign_data.platform = ? AND campaign_data.campaign_id_platform = ?", platform, campaignID).
		Order("campaign_data.date DESC, campaign_data.updated_at DESC").
		Limit(1).
		Take(&fact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return fact.CampaignNamePlatform, err
}

// DailyTotals returns one row per day that has data, ordered by date.
func (r *campaignFactRepository) DailyTotals(userID uint, filter FactFilter, start, end time.Time) ([]DailyTotals, error) {
	var out []DailyTotals
	err := applyFilter(r.overallFacts(userID, start, end), filter).
		Select("campaign_data.date AS date, " + totalsSelect).
		Group("campaign_data.date").
		Order("campaign_data.date").
		Scan(&out).Error
	return out, err
}

func (r *campaignFactRepository) PeriodTotals(userID uint, filter FactFilter, start, end time.Time) (*MetricTotals, error) {
	var out MetricTotals
	err := applyFilter(r.overallFacts(userID, start, end), filter).
		Select(totalsSelect).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DailyPlatformMetric sums one base metric per platform and day.
func (r *campaignFactRepository) DailyPlatformMetric(userID uint, metric string, start, end time.Time) ([]PlatformDailyValue, error) {
	col, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	var out []PlatformDailyValue
	err := r.overallFacts(userID, start, end).
		Select("campaign_data.platform AS platform, campaign_data.date AS date, COALESCE(SUM(" + col + "),0) AS value").
		Group("campaign_data.platform, campaign_data.date").
		Order("campaign_data.platform, campaign_data.date").
		Scan(&out).Error
	return out, err
}

// BreakdownTotals sums one base metric per breakdown value of breakdownType.
func (r *campaignFactRepository) BreakdownTotals(userID uint, breakdownType, metric string, filter FactFilter, start, end time.Time) ([]BreakdownTotal, error) {
	col, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	var out []BreakdownTotal
	q := r.userFacts(userID).
		Where("campaign_data.breakdown_type = ?", breakdownType).
		Where("campaign_data.date BETWEEN ? AND ?", models.FactDate(start), models.FactDate(end))
	err := applyFilter(q, filter).
		Select("campaign_data.breakdown_value AS breakdown_value, COALESCE(SUM(" + col + "),0) AS total").
		Group("campaign_data.breakdown_value").
		Order("campaign_data.breakdown_value").
		Scan(&out).Error
	return out, err
}

// ListCampaigns returns the distinct campaigns of the user, ordered by platform and name.
func (r *campaignFactRepository) ListCampaigns(userID uint) ([]CampaignRef, error) {
	var out []CampaignRef
	err := r.userFacts(userID).
		Select("campaign_data.campaign_id_platform AS id, campaign_data.platform AS platform").
		Group("campaign_data.campaign_id_platform, campaign_data.platform").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	names, err := r.latestNames(userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Name = names[campaignKey{id: out[i].ID, platform: out[i].Platform}]
		if out[i].Name == "" {
			out[i].Name = "Campaign ID: " + out[i].ID
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
