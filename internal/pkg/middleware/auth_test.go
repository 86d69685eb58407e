package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	icuser "github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

type subscriptionsByUser map[uint]*models.Subscription

func (s subscriptionsByUser) CurrentSubscription(userID uint) (*models.Subscription, error) {
	if userID == 99 {
		return nil, errors.New("database is gone")
	}
	if sub, ok := s[userID]; ok {
		return sub, nil
	}
	return nil, billing.ErrSubscriptionNotFound
}

var subs = subscriptionsByUser{
	1: {UserID: 1, Status: models.SubscriptionStatusActive, Plan: &models.SubscriptionPlan{Name: "Basic"}},
	2: {UserID: 2, Status: models.SubscriptionStatusCancelled, Plan: &models.SubscriptionPlan{Name: "Pro"}},
	3: {UserID: 3, Status: models.SubscriptionStatusPastDue, Plan: &models.SubscriptionPlan{Name: "Pro"}},
}

func testApp(userID uint, admin bool, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID > 0 {
			icuser.Set(c, icuser.UserContext{UserID: userID, Username: "u", IsLoggedIn: true, IsAdmin: admin})
		} else {
			icuser.Set(c, icuser.UserContext{})
		}
		return c.Next()
	})
	handlers = append(handlers, func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out["error"]
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	resp := call(t, testApp(0, false, RequireAuth))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = call(t, testApp(1, false, RequireAuth))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	resp := call(t, testApp(1, false, RequireAdmin))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = call(t, testApp(1, true, RequireAdmin))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAPISessionAuthAnswers401(t *testing.T) {
	resp := call(t, testApp(0, false, RequireAPISessionAuth))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errorBody(t, resp))
}

func TestRequireSubscriptionAPI(t *testing.T) {
	tests := []struct {
		userID uint
		status int
		err    string
	}{
		{1, http.StatusOK, ""},
		{2, http.StatusForbidden, "subscription_required"},
		{3, http.StatusOK, ""},
		{4, http.StatusForbidden, "subscription_required"},
		{99, http.StatusInternalServerError, "internal_server_error"},
	}
	for _, tt := range tests {
		resp := call(t, testApp(tt.userID, false, RequireAPISessionAuth, RequireSubscriptionAPI(subs)))
		if resp.StatusCode != tt.status {
			t.Fatalf("user %d: status %d, want %d", tt.userID, resp.StatusCode, tt.status)
		}
		if tt.err != "" {
			if got := errorBody(t, resp); got != tt.err {
				t.Fatalf("user %d: error %q, want %q", tt.userID, got, tt.err)
			}
		}
	}
}

func TestRequireSubscriptionPageRedirects(t *testing.T) {
	resp := call(t, testApp(0, false, RequireSubscription(subs)))
	assert.Equal(t, constants.LoginRoute, resp.Header.Get("Location"))

	resp = call(t, testApp(4, false, RequireSubscription(subs)))
	assert.Equal(t, constants.PlansRoute, resp.Header.Get("Location"))

	resp = call(t, testApp(1, false, RequireSubscription(subs, "Pro")))
	assert.Equal(t, constants.PlansRoute, resp.Header.Get("Location"))

	resp = call(t, testApp(3, false, RequireSubscription(subs, "Pro")))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlanRequiredMessage(t *testing.T) {
	assert.Equal(t, "This page requires a Pro or Enterprise subscription. Your current plan is Basic.",
		planRequiredMessage([]string{"Pro", "Enterprise"}, "Basic"))
}
