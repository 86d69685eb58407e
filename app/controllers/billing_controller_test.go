package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
)

const testWebhookSecret = "whsec_test_secret"

type stubGateway struct {
	checkouts []billing.CheckoutInput
}

func (g *stubGateway) CheckoutPriceID(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (g *stubGateway) GetSubscription(context.Context, string) (*stripe.Subscription, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, in billing.CheckoutInput) (string, error) {
	g.checkouts = append(g.checkouts, in)
	return "https://checkout.stripe.test/c/1", nil
}

func (g *stubGateway) CreatePortalSession(context.Context, string, string) (string, error) {
	return "https://billing.stripe.test/p/1", nil
}

func billingApp(env *testEnv, userID uint, gw billing.Gateway) *fiber.App {
	svc := billing.NewService(billing.NewRepository(env.db), gw, fixedClock)
	bc := NewBillingController(svc, env.repos.User, testWebhookSecret, "https://app.test")
	return newApp(userID, false, func(app *fiber.App) {
		app.Post("/webhook", bc.HandleStripeWebhook)
		app.Get("/plans", bc.HandlePlans)
		app.Get("/checkout/:plan_id", bc.HandleCreateCheckoutSession)
		app.Get("/portal", bc.HandleCustomerPortal)
		app.Get("/subscription", bc.HandleSubscription)
		app.Get("/trial", bc.HandleTrialStatus)
	})
}

func (e *testEnv) seedPlan(t *testing.T, name string, priceID *string) *models.SubscriptionPlan {
	t.Helper()
	p := &models.SubscriptionPlan{Name: name, Price: decimal.RequireFromString("29.00"), StripePriceID: priceID, IsActive: true}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(payload)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStripeWebhookRejectsInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	status, body := postWebhook(t, billingApp(env, 0, nil), []byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid signature", body)
}

func TestStripeWebhookDeduplicatesEvents(t *testing.T) {
	env := newTestEnv(t)
	app := billingApp(env, 0, nil)
	payload := []byte(`{"id":"evt_dup","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})

	status, body := postWebhook(t, app, signed.Payload, signed.Header)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Success: Event received but not explicitly handled by this endpoint.", body)

	status, body = postWebhook(t, app, signed.Payload, signed.Header)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acknowledged: Event already processed", body)

	var n int64
	require.NoError(t, env.db.Model(&models.BillingWebhookEvent{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestPlansListsActivePlans(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlan(t, "Basic", nil)

	resp := get(t, billingApp(env, 0, nil), "/plans")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Plans []models.SubscriptionPlan `json:"plans"`
	}
	decodeJSON(t, resp, &out)
	require.Len(t, out.Plans, 1)
	assert.Equal(t, "Basic", out.Plans[0].Name)
}

func TestCheckoutRedirects(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "buyer@example.com")
	priceID := "price_pro"
	pro := env.seedPlan(t, "Pro", &priceID)
	basic := env.seedPlan(t, "Basic", nil)
	gw := &stubGateway{}
	app := billingApp(env, u.ID, gw)

	resp := get(t, app, "/checkout/"+itoa(pro.ID))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://checkout.stripe.test/c/1", resp.Header.Get("Location"))
	require.Len(t, gw.checkouts, 1)
	assert.Equal(t, "price_pro", gw.checkouts[0].PriceID)
	assert.Equal(t, "https://app.test"+constants.CheckoutSuccessRoute+"?session_id={CHECKOUT_SESSION_ID}", gw.checkouts[0].SuccessURL)

	resp = get(t, app, "/checkout/"+itoa(basic.ID))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.PlansRoute, resp.Header.Get("Location"))
	assert.Len(t, gw.checkouts, 1)
}

func TestPortalWithoutCustomerRedirectsBack(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "nocustomer@example.com")

	resp := get(t, billingApp(env, u.ID, &stubGateway{}), "/portal")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.SubscriptionRoute, resp.Header.Get("Location"))
}

func TestTrialStatus(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "trial@example.com")
	app := billingApp(env, u.ID, nil)

	resp := get(t, app, "/trial")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty map[string]any
	decodeJSON(t, resp, &empty)
	assert.Nil(t, empty["trial"])
	assert.Equal(t, "No trial subscription found for your account.", empty["message"])

	plan := env.seedPlan(t, "Pro", nil)
	end := testNow.AddDate(0, 0, 5)
	require.NoError(t, env.db.Create(&models.Subscription{
		UserID:               u.ID,
		PlanID:               plan.ID,
		StartDate:            testNow.AddDate(0, 0, -9),
		EndDate:              &end,
		Status:               models.SubscriptionStatusTrialing,
		StripeSubscriptionID: "sub_trial",
	}).Error)

	resp = get(t, app, "/trial")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Trial   billing.TrialStatus `json:"trial"`
		Message string              `json:"message"`
	}
	decodeJSON(t, resp, &out)
	assert.True(t, out.Trial.IsActive)
	assert.Equal(t, 5, out.Trial.RemainingDays)
	assert.Equal(t, "Your Pro trial is active with 5 days remaining.", out.Message)

	resp = get(t, app, "/subscription")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sub struct {
		Subscription models.Subscription `json:"subscription"`
	}
	decodeJSON(t, resp, &sub)
	assert.Equal(t, "sub_trial", sub.Subscription.StripeSubscriptionID)
	assert.WithinDuration(t, end, *sub.Subscription.EndDate, time.Second)
}
