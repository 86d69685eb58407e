package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
	"github.com/ManuelReschke/AdInsights/internal/pkg/session"
	"github.com/ManuelReschke/AdInsights/internal/pkg/testutil"
	"github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

// testNow pins "today" to 2024-03-15, so yesterday is 2024-03-14.
var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func day(offset int) time.Time {
	return models.FactDate(testNow).AddDate(0, 0, offset)
}

type testEnv struct {
	db    *gorm.DB
	repos *repository.Repositories
	redis *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	cache.SetClient(rdb)
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(nil) })
	return &testEnv{db: db, repos: repository.NewRepositories(db), redis: mr}
}

// newApp mounts routes behind a middleware that logs in userID (0 means anonymous).
func newApp(userID uint, admin bool, mount func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		uc := usercontext.UserContext{}
		if userID > 0 {
			uc = usercontext.UserContext{UserID: userID, Username: "tester", IsLoggedIn: true, IsAdmin: admin}
		}
		usercontext.Set(c, uc)
		return c.Next()
	})
	mount(app)
	return app
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := models.CreateUser("Test User", email, "secret123")
	require.NoError(t, err)
	require.NoError(t, e.repos.User.Create(u))
	return u
}

func (e *testEnv) seedIntegration(t *testing.T, userID uint, platform models.Platform, status string) *models.Integration {
	t.Helper()
	i := &models.Integration{UserID: userID, PlatformName: platform, AdAccountID: "acc-" + string(platform), Status: status}
	require.NoError(t, e.db.Create(i).Error)
	return i
}

func (e *testEnv) seedOverall(t *testing.T, integ *models.Integration, campaign string, date time.Time, imp, clicks int64, spend string, conv int64) {
	t.Helper()
	e.seedFact(t, integ, campaign, date, models.BreakdownOverall, models.BreakdownValueNone, imp, clicks, spend, conv)
}

func (e *testEnv) seedFact(t *testing.T, integ *models.Integration, campaign string, date time.Time, bType, bValue string, imp, clicks int64, spend string, conv int64) {
	t.Helper()
	require.NoError(t, e.repos.Fact.Upsert(&models.CampaignFact{
		IntegrationID:        integ.ID,
		Platform:             integ.PlatformName,
		CampaignIDPlatform:   campaign,
		CampaignNamePlatform: "Campaign " + campaign,
		Date:                 date,
		BreakdownType:        bType,
		BreakdownValue:       bValue,
		Impressions:          imp,
		Clicks:               clicks,
		Spend:                decimal.RequireFromString(spend),
		Conversions:          conv,
	}))
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, app *fiber.App, target string) *http.Response {
	return doRequest(t, app, http.MethodGet, target, nil, "")
}

func postForm(t *testing.T, app *fiber.App, target string, form url.Values) *http.Response {
	return doRequest(t, app, http.MethodPost, target, strings.NewReader(form.Encode()), fiber.MIMEApplicationForm)
}

func postJSON(t *testing.T, app *fiber.App, target, body string) *http.Response {
	return doRequest(t, app, http.MethodPost, target, strings.NewReader(body), fiber.MIMEApplicationJSON)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
