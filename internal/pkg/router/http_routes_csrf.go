package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
	"github.com/ManuelReschke/AdInsights/internal/pkg/middleware"
)

// csrfExempt lists the JSON API prefixes; they rely on the SameSite session cookie.
var csrfExempt = []string{"/api/", "/billing/stripe-webhook", "/ai-insights/api/", "/optimization/api/", "/dashboard/api/"}

func skipCSRF(c *fiber.Ctx) bool {
	for _, p := range csrfExempt {
		if strings.HasPrefix(c.Path(), p) {
			return true
		}
	}
	return false
}

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next:           skipCSRF,
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	})

	// Auth
	auth := h.ctrl.Auth
	group.Get("/login", auth.HandleLoginPage)
	group.Post("/login", auth.HandleLogin)
	group.Get("/register", auth.HandleRegisterPage)
	group.Post("/register", auth.HandleRegister)
	group.Post("/logout", middleware.RequireAuth, auth.HandleLogout)
	group.Get("/profile", middleware.RequireAuth, auth.HandleProfile)

	// Dashboard
	dash := h.ctrl.Dashboard
	group.Get("/dashboard", middleware.RequireAuth, dash.HandleDashboard)
	dashAPI := group.Group("/dashboard/api", middleware.RequireAPISessionAuth)
	dashAPI.Get("/kpis", dash.HandleKPIs)
	dashAPI.Get("/budget_status", dash.HandleBudgetStatus)
	dashAPI.Get("/performance_breakdown", dash.HandlePerformanceBreakdown)
	dashAPI.Get("/breakdown/device", dash.HandleDeviceBreakdown)
	dashAPI.Get("/breakdown/country", dash.HandleCountryBreakdown)
	dashAPI.Get("/breakdown/audience", dash.HandleAudienceBreakdown)

	// Insights
	ins := h.ctrl.Insights
	group.Get("/ai-insights", middleware.RequireSubscription(h.ctrl.Subscriptions), ins.HandleInsightsPage)
	insAPI := group.Group("/ai-insights/api", middleware.RequireAPISessionAuth, middleware.RequireSubscriptionAPI(h.ctrl.Subscriptions))
	insAPI.Get("/anomaly/spend_by_campaign", ins.HandleSpendAnomalies)
	insAPI.Get("/top_movers", ins.HandleTopMovers)
	insAPI.Get("/campaign_scorecard", ins.HandleCampaignScorecard)
	insAPI.Get("/user_campaign_list", ins.HandleUserCampaignList)
	insAPI.Get("/metric_trends", ins.HandleMetricTrends)
	insAPI.Get("/simple_forecast", ins.HandleSimpleForecast)

	// Optimization
	group.Post("/optimization/api/budget_simulator", middleware.RequireAPISessionAuth, h.ctrl.Optimization.HandleBudgetSimulator)

	// Integrations
	integ := h.ctrl.Integration
	ig := group.Group("/integration", middleware.RequireAuth)
	ig.Get("/", integ.HandleHub)
	ig.Get("/google/connect", integ.HandleGoogleConnect)
	ig.Get("/google/callback", integ.HandleGoogleCallback)
	ig.Get("/meta/connect", integ.HandleMetaConnect)
	ig.Get("/meta/callback", integ.HandleMetaCallback)
	ig.Get("/googleads/select_account/:id", integ.HandleGoogleSelectAccount)
	ig.Post("/googleads/select_account/:id", integ.HandleGoogleSelectAccount)
	ig.Get("/metaads/select_account/:id", integ.HandleMetaSelectAccount)
	ig.Post("/metaads/select_account/:id", integ.HandleMetaSelectAccount)
	ig.Post("/googleads/fetch_data/:id", integ.HandleGoogleFetch)
	ig.Post("/metaads/fetch_data/:id", integ.HandleMetaFetch)
	ig.Post("/:id/disconnect", integ.HandleDisconnect)

	// Billing
	bill := h.ctrl.Billing
	bg := group.Group("/billing", middleware.RequireAuth)
	bg.Post("/create-checkout-session/:plan_id", bill.HandleCreateCheckoutSession)
	bg.Get("/checkout-success", bill.HandleCheckoutSuccess)
	bg.Get("/checkout-cancel", bill.HandleCheckoutCancel)
	bg.Post("/create-customer-portal-session", bill.HandleCustomerPortal)
	bg.Get("/subscription", bill.HandleSubscription)
	bg.Get("/trial-status", bill.HandleTrialStatus)

	// Admin actions that change state
	group.Post("/admin/fetch-stats/reset", middleware.RequireAdmin, h.ctrl.Admin.HandleResetFetchStats)
}
