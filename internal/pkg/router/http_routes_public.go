package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Stripe webhook (no CSRF, signature-verified in controller)
	app.Post("/billing/stripe-webhook", h.ctrl.Billing.HandleStripeWebhook)

	// Social login
	app.Get("/auth/:provider", h.ctrl.Auth.HandleProviderLogin)
	app.Get("/auth/:provider/callback", h.ctrl.Auth.HandleProviderCallback)

	app.Get("/subscription-plans", h.ctrl.Billing.HandlePlans)
}
