package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v79"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
)

// BillingController serves the plan catalog, Stripe checkout and portal redirects,
// and the Stripe webhook.
type BillingController struct {
	service       *billing.Service
	users         repository.UserRepository
	webhookSecret string
	baseURL       string
}

func NewBillingController(service *billing.Service, users repository.UserRepository, webhookSecret, baseURL string) *BillingController {
	return &BillingController{service: service, users: users, webhookSecret: webhookSecret, baseURL: baseURL}
}

// HandleStripeWebhook answers Stripe with plain text. 404 and 5xx make Stripe retry.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.BodyRaw()...)
	event, err := billing.VerifyStripeWebhook(payload, c.Get("Stripe-Signature"), bc.webhookSecret)
	if errors.Is(err, billing.ErrInvalidSignature) {
		log.Warnf("stripe webhook: invalid signature")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid signature")
	}
	if err != nil {
		log.Warnf("stripe webhook: invalid payload: %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("Invalid payload")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg, err := bc.service.ProcessWebhook(ctx, event, payload)
	if err != nil {
		var evErr *billing.EventError
		if errors.As(err, &evErr) {
			log.Errorf("stripe webhook %s (%s): %v", event.ID, event.Type, err)
			return c.Status(evErr.Status).SendString(evErr.Message)
		}
		log.Errorf("stripe webhook %s (%s): %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Error processing event")
	}
	return c.Status(fiber.StatusOK).SendString(msg)
}

// HandlePlans lists the active plans. Public.
func (bc *BillingController) HandlePlans(c *fiber.Ctx) error {
	plans, err := bc.service.ListPlans()
	if err != nil {
		return serverError(c, "list plans", err)
	}
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	return c.JSON(fiber.Map{"plans": plans, "flash": flash.Get(c)})
}

// paymentErrorMessage turns a Stripe API error into the flash shown on the plans page.
func paymentErrorMessage(err error) (string, string) {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return flash.LevelError, "An unexpected error occurred while trying to set up your payment. Please contact support."
	}
	switch {
	case serr.Type == stripe.ErrorTypeCard:
		return flash.LevelError, "Your card was declined: " + userMessage(serr, "Please try a different card or contact your bank.")
	case serr.HTTPStatusCode == http.StatusTooManyRequests:
		return flash.LevelWarning, "We're currently experiencing high traffic with our payment provider. Please try again in a few moments."
	case serr.HTTPStatusCode == http.StatusUnauthorized:
		return flash.LevelError, "There's an issue with our payment provider configuration. Please contact support."
	case serr.Type == stripe.ErrorTypeInvalidRequest:
		return flash.LevelError, "There was an issue with the payment request. Please check your details or contact support if the problem persists."
	}
	return flash.LevelError, "A payment processing error occurred: " + userMessage(serr, "Please try again or contact support.")
}

func userMessage(serr *stripe.Error, fallback string) string {
	if serr.Msg != "" {
		return serr.Msg
	}
	return fallback
}

// HandleCreateCheckoutSession redirects (303) to Stripe Checkout for the plan.
func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	planID, err := c.ParamsInt("plan_id")
	if err != nil || planID <= 0 {
		return flash.Error(c, "This plan is not available for online purchase at the moment. Please contact support.", constants.PlansRoute)
	}
	user, err := bc.users.GetByID(currentUserID(c))
	if err != nil {
		log.Errorf("checkout: load user %d: %v", currentUserID(c), err)
		return flash.Error(c, "An unexpected error occurred while trying to set up your payment. Please contact support.", constants.PlansRoute)
	}

	url, err := bc.service.StartCheckout(c.UserContext(), user, uint(planID),
		bc.baseURL+constants.CheckoutSuccessRoute+"?session_id={CHECKOUT_SESSION_ID}",
		bc.baseURL+constants.CheckoutCancelRoute)
	switch {
	case err == nil:
		log.Infof("checkout: user %d started plan %d", user.ID, planID)
		return c.Redirect(url, fiber.StatusSeeOther)
	case errors.Is(err, billing.ErrPlanNotFound), errors.Is(err, billing.ErrPlanNotPurchasable):
		return flash.Error(c, "This plan is not available for online purchase at the moment. Please contact support.", constants.PlansRoute)
	}
	log.Errorf("checkout: user %d plan %d: %v", user.ID, planID, err)
	level, msg := paymentErrorMessage(err)
	return flash.Redirect(c, level, msg, constants.PlansRoute)
}

func (bc *BillingController) HandleCheckoutSuccess(c *fiber.Ctx) error {
	if id := c.Query("session_id"); id != "" {
		log.Infof("checkout success for user %d, session %s", currentUserID(c), id)
	}
	return flash.Success(c, "Your subscription checkout was successful! Your plan should be active shortly.", constants.ProfileRoute)
}

func (bc *BillingController) HandleCheckoutCancel(c *fiber.Ctx) error {
	return flash.Info(c, "Your subscription checkout was cancelled. You can choose a plan anytime.", constants.PlansRoute)
}

// HandleCustomerPortal redirects (303) to the Stripe billing portal.
func (bc *BillingController) HandleCustomerPortal(c *fiber.Ctx) error {
	user, err := bc.users.GetByID(currentUserID(c))
	if err != nil {
		log.Errorf("portal: load user %d: %v", currentUserID(c), err)
		return flash.Error(c, "An unexpected error occurred while trying to access the billing portal. Please contact support.", constants.SubscriptionRoute)
	}
	url, err := bc.service.PortalURL(c.UserContext(), user, bc.baseURL+constants.SubscriptionRoute)
	if errors.Is(err, billing.ErrNoBillingAccount) {
		return flash.Warning(c, "No billing information found for your account. This usually means you don't have an active subscription.", constants.SubscriptionRoute)
	}
	if err != nil {
		log.Errorf("portal: user %d: %v", user.ID, err)
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeInvalidRequest {
			return flash.Error(c, "Could not create a billing portal session due to an invalid request. This might happen if your billing information is incomplete. Please contact support.", constants.SubscriptionRoute)
		}
		return flash.Error(c, "An unexpected error occurred while trying to access the billing portal. Please contact support.", constants.SubscriptionRoute)
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleSubscription returns the entitling subscription, or null.
func (bc *BillingController) HandleSubscription(c *fiber.Ctx) error {
	sub, err := bc.service.CurrentSubscription(currentUserID(c))
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		return c.JSON(fiber.Map{"subscription": nil, "flash": flash.Get(c)})
	}
	if err != nil {
		return serverError(c, "load subscription", err)
	}
	return c.JSON(fiber.Map{"subscription": sub, "flash": flash.Get(c)})
}

// HandleTrialStatus summarizes the newest trial, or null.
func (bc *BillingController) HandleTrialStatus(c *fiber.Ctx) error {
	status, err := bc.service.TrialStatus(currentUserID(c))
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		return c.JSON(fiber.Map{"trial": nil, "message": "No trial subscription found for your account."})
	}
	if err != nil {
		return serverError(c, "load trial status", err)
	}
	msg := fmt.Sprintf("Your %s trial has ended.", status.PlanName)
	if status.IsActive {
		msg = fmt.Sprintf("Your %s trial is active with %d days remaining.", status.PlanName, status.RemainingDays)
	}
	return c.JSON(fiber.Map{"trial": status, "message": msg})
}
