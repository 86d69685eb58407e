package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/testutil"
)

var day1 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func seedIntegration(t *testing.T, db *gorm.DB, userID uint, platform models.Platform, status string) *models.Integration {
	t.Helper()
	i := &models.Integration{UserID: userID, PlatformName: platform, AdAccountID: "acc-" + string(platform), Status: status}
	require.NoError(t, db.Create(i).Error)
	return i
}

func deviceFact(integrationID uint, campaign, device string, date time.Time, imp, clicks int64, spend string, conv int64) models.CampaignFact {
	return models.CampaignFact{
		IntegrationID:        integrationID,
		Platform:             models.PlatformGoogleAds,
		CampaignIDPlatform:   campaign,
		CampaignNamePlatform: "Campaign " + campaign,
		Date:                 date,
		BreakdownType:        models.BreakdownDevice,
		BreakdownValue:       device,
		Impressions:          imp,
		Clicks:               clicks,
		Spend:                decimal.RequireFromString(spend),
		Conversions:          conv,
	}
}

func TestUpsertIsIdempotentAndLastWriteWins(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)

	first := deviceFact(integ.ID, "c1", "mobile", day1, 100, 10, "5.50", 1)
	require.NoError(t, repo.Upsert(&first))
	again := deviceFact(integ.ID, "c1", "mobile", day1, 100, 10, "5.50", 1)
	require.NoError(t, repo.Upsert(&again))

	second := deviceFact(integ.ID, "c1", "mobile", day1, 300, 30, "7.25", 3)
	second.CampaignNamePlatform = "Renamed"
	require.NoError(t, repo.Upsert(&second))

	facts, err := repo.ListByCampaignDay(integ.ID, "c1", day1)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(300), facts[0].Impressions)
	assert.Equal(t, int64(30), facts[0].Clicks)
	assert.Equal(t, "7.25", facts[0].Spend.StringFixed(2))
	assert.Equal(t, int64(3), facts[0].Conversions)
	assert.Equal(t, "Renamed", facts[0].CampaignNamePlatform)
}

func TestRecomputeOverallSumsDeviceRowsOnly(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)

	batch := []models.CampaignFact{
		deviceFact(integ.ID, "c1", "mobile", day1, 100, 10, "5.10", 1),
		deviceFact(integ.ID, "c1", "desktop", day1, 50, 5, "2.20", 2),
		deviceFact(integ.ID, "c1", "tablet", day1, 7, 1, "0.35", 0),
	}
	country := deviceFact(integ.ID, "c1", "US", day1, 999, 99, "99.99", 9)
	country.BreakdownType = models.BreakdownCountry
	batch = append(batch, country)
	require.NoError(t, repo.UpsertBatch(batch))

	ok, err := repo.RecomputeOverall(integ.ID, models.PlatformGoogleAds, CampaignDay{CampaignID: "c1", Date: day1})
	require.NoError(t, err)
	require.True(t, ok)

	facts, err := repo.ListByCampaignDay(integ.ID, "c1", day1)
	require.NoError(t, err)
	var overall *models.CampaignFact
	for i := range facts {
		if facts[i].BreakdownType == models.BreakdownOverall {
			overall = &facts[i]
		}
	}
	require.NotNil(t, overall)
	assert.Equal(t, models.BreakdownValueNone, overall.BreakdownValue)
	assert.Equal(t, int64(157), overall.Impressions)
	assert.Equal(t, int64(16), overall.Clicks)
	assert.Equal(t, "7.65", overall.Spend.StringFixed(2))
	assert.Equal(t, int64(3), overall.Conversions)
	assert.Equal(t, "Campaign c1", overall.CampaignNamePlatform)
}

func TestRecomputeOverallSkipsWithoutDeviceRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformMetaAds, models.IntegrationStatusActive)

	gender := deviceFact(integ.ID, "c9", "female", day1, 10, 1, "1.00", 0)
	gender.BreakdownType = models.BreakdownGender
	require.NoError(t, repo.Upsert(&gender))

	ok, err := repo.RecomputeOverall(integ.ID, models.PlatformMetaAds, CampaignDay{CampaignID: "c9", Date: day1})
	require.NoError(t, err)
	assert.False(t, ok)

	facts, err := repo.ListByCampaignDay(integ.ID, "c9", day1)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, models.BreakdownGender, facts[0].BreakdownType)
}

func TestRecomputeOverallBatchIsRerunnable(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.UpsertBatch([]models.CampaignFact{
		deviceFact(integ.ID, "c1", "mobile", day1, 10, 1, "1.00", 0),
		deviceFact(integ.ID, "c1", "mobile", day2, 20, 2, "2.00", 1),
	}))
	keys := []CampaignDay{{CampaignID: "c1", Date: day1}, {CampaignID: "c1", Date: day2}, {CampaignID: "missing", Date: day1}}

	n, err := repo.RecomputeOverallBatch(integ.ID, models.PlatformGoogleAds, keys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// device row changes, rollup follows
	updated := deviceFact(integ.ID, "c1", "mobile", day2, 40, 4, "4.00", 2)
	require.NoError(t, repo.Upsert(&updated))
	n, err = repo.RecomputeOverallBatch(integ.ID, models.PlatformGoogleAds, keys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var overallCount int64
	require.NoError(t, db.Model(&models.CampaignFact{}).Where("breakdown_type = ?", models.BreakdownOverall).Count(&overallCount).Error)
	assert.Equal(t, int64(2), overallCount)

	totals, err := repo.PeriodTotals(1, FactFilter{}, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(50), totals.Impressions)
	assert.InDelta(t, 5.0, totals.Spend, 0.001)
}

func TestUpsertBatchRollsBackOnFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)

	good := deviceFact(integ.ID, "c1", "mobile", day1, 10, 1, "1.00", 0)
	bad := deviceFact(integ.ID, "c1", "desktop", day1, 10, 1, "1.00", 0)
	// force a failure in the second statement of the batch
	require.NoError(t, db.Exec("CREATE TRIGGER fail_desktop BEFORE INSERT ON campaign_data WHEN NEW.breakdown_value = 'desktop' BEGIN SELECT RAISE(ABORT, 'boom'); END").Error)

	err := repo.UpsertBatch([]models.CampaignFact{good, bad})
	require.Error(t, err)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func seedOverall(t *testing.T, repo CampaignFactRepository, integ *models.Integration, campaign, name string, date time.Time, imp, clicks int64, spend string, conv int64) {
	t.Helper()
	f := models.CampaignFact{
		IntegrationID:        integ.ID,
		Platform:             integ.PlatformName,
		CampaignIDPlatform:   campaign,
		CampaignNamePlatform: name,
		Date:                 date,
		BreakdownType:        models.BreakdownOverall,
		BreakdownValue:       models.BreakdownValueNone,
		Impressions:          imp,
		Clicks:               clicks,
		Spend:                decimal.RequireFromString(spend),
		Conversions:          conv,
	}
	require.NoError(t, repo.Upsert(&f))
}

func TestReadsAreScopedToActiveIntegrationsAndOverallRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	mine := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)
	meta := seedIntegration(t, db, 1, models.PlatformMetaAds, models.IntegrationStatusRevoked)
	other := seedIntegration(t, db, 2, models.PlatformGoogleAds, models.IntegrationStatusActive)

	seedOverall(t, repo, mine, "g1", "Brand", day1, 100, 10, "10.00", 1)
	seedOverall(t, repo, mine, "g1", "Brand", day1.AddDate(0, 0, 1), 200, 20, "20.00", 2)
	seedOverall(t, repo, mine, "g2", "", day1, 50, 5, "5.00", 0)
	seedOverall(t, repo, meta, "m1", "Meta", day1, 1000, 100, "100.00", 10)
	seedOverall(t, repo, other, "x1", "Other", day1, 1000, 100, "100.00", 10)
	dev := deviceFact(mine.ID, "g1", "mobile", day1, 100, 10, "10.00", 1)
	require.NoError(t, repo.Upsert(&dev))

	daily, err := repo.DailyTotals(1, FactFilter{}, day1, day1.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.True(t, daily[0].Date.Time().Equal(day1))
	assert.Equal(t, int64(150), daily[0].Impressions)
	assert.InDelta(t, 15.0, daily[0].Spend, 0.001)

	perCampaign, err := repo.CampaignMetricTotals(1, "clicks", day1, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, perCampaign, 2)
	assert.Equal(t, "g1", perCampaign[0].CampaignID)
	assert.InDelta(t, 30, perCampaign[0].Total, 0.001)

	_, err = repo.CampaignMetricTotals(1, "ctr", day1, day1)
	assert.ErrorIs(t, err, ErrUnknownMetric)

	list, err := repo.ListCampaigns(1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Brand", list[0].Name)
	assert.Equal(t, "Campaign ID: g2", list[1].Name)

	name, err := repo.LatestCampaignName(1, models.PlatformGoogleAds, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Brand", name)

	name, err = repo.LatestCampaignName(1, models.PlatformMetaAds, "m1")
	require.NoError(t, err)
	assert.Equal(t, "", name)

	spend, err := repo.DailyCampaignSpend(1, day1, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, spend, 3)

	byPlatform, err := repo.DailyPlatformMetric(1, "spend", day1, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, byPlatform, 2)
	assert.Equal(t, models.PlatformGoogleAds, byPlatform[0].Platform)
	assert.InDelta(t, 15.0, byPlatform[0].Value, 0.001)

	devices, err := repo.BreakdownTotals(1, models.BreakdownDevice, "impressions", FactFilter{}, day1, day1)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "mobile", devices[0].BreakdownValue)
}

func TestRecomputeOverallUsesRunName(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)

	mobile := deviceFact(integ.ID, "c1", "mobile", day1, 10, 1, "1.00", 0)
	mobile.CampaignNamePlatform = "Zeta Old"
	require.NoError(t, repo.Upsert(&mobile))

	_, err := repo.RecomputeOverall(integ.ID, models.PlatformGoogleAds, CampaignDay{CampaignID: "c1", Date: day1, Name: "Alpha New"})
	require.NoError(t, err)

	var overall models.CampaignFact
	require.NoError(t, db.Where("breakdown_type = ?", models.BreakdownOverall).First(&overall).Error)
	assert.Equal(t, "Alpha New", overall.CampaignNamePlatform)
}

func TestCampaignNamesFollowLatestFact(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCampaignFactRepository(db)
	integ := seedIntegration(t, db, 1, models.PlatformGoogleAds, models.IntegrationStatusActive)
	day2 := day1.AddDate(0, 0, 1)

	seedOverall(t, repo, integ, "c1", "Zeta Old", day1, 10, 1, "1.00", 0)
	seedOverall(t, repo, integ, "c1", "Alpha New", day2, 20, 2, "2.00", 0)

	list, err := repo.ListCampaigns(1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alpha New", list[0].Name)

	totals, err := repo.CampaignMetricTotals(1, "clicks", day1, day2)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "Alpha New", totals[0].CampaignName)

	spend, err := repo.DailyCampaignSpend(1, day1, day2)
	require.NoError(t, err)
	require.Len(t, spend, 2)
	for _, s := range spend {
		if s.CampaignName != "Alpha New" {
			t.Fatalf("daily spend on %s named %q, want Alpha New", s.Date.Time().Format("2006-01-02"), s.CampaignName)
		}
	}

	name, err := repo.LatestCampaignName(1, models.PlatformGoogleAds, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha New", name)
}
