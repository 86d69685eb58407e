package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
)

const providerStripe = "stripe"

// Stripe event types the state machine reacts to.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventSubscriptionUpdated     = "customer.subscription.updated"
)

// Service keeps local subscriptions in sync with Stripe and starts checkout/portal sessions.
type Service struct {
	repo    Repository
	gateway Gateway
	now     func() time.Time
}

// NewService creates a billing service from an injected repository and gateway.
func NewService(repo Repository, gateway Gateway, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, gateway: gateway, now: now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway, nil)
}

func (s *Service) ListPlans() ([]models.SubscriptionPlan, error) {
	return s.repo.ListActivePlans()
}

// StartCheckout returns the Stripe Checkout URL for a plan.
func (s *Service) StartCheckout(ctx context.Context, user *models.User, planID uint, successURL, cancelURL string) (string, error) {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return "", err
	}
	if !plan.Purchasable() || !plan.IsActive {
		return "", ErrPlanNotPurchasable
	}
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	in := CheckoutInput{
		UserID:     user.ID,
		Email:      user.Email,
		PriceID:    *plan.StripePriceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	}
	if user.StripeCustomerID != nil {
		in.CustomerID = *user.StripeCustomerID
	}
	return s.gateway.CreateCheckoutSession(ctx, in)
}

// PortalURL returns a Stripe billing portal session for the user's customer.
func (s *Service) PortalURL(ctx context.Context, user *models.User, returnURL string) (string, error) {
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoBillingAccount
	}
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	return s.gateway.CreatePortalSession(ctx, *user.StripeCustomerID, returnURL)
}

// CurrentSubscription is the newest active, trialing or past_due subscription.
func (s *Service) CurrentSubscription(userID uint) (*models.Subscription, error) {
	return s.repo.LatestEntitlingSubscription(userID)
}

// TrialStatus describes the newest trialing subscription. Days are counted on UTC calendar dates.
func (s *Service) TrialStatus(userID uint) (*TrialStatus, error) {
	sub, err := s.repo.LatestTrialSubscription(userID)
	if err != nil {
		return nil, err
	}
	today := models.FactDate(s.now().UTC())
	out := &TrialStatus{
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		FeaturesSummary: "All selected plan features",
	}
	if sub.Plan != nil {
		out.PlanName = sub.Plan.Name
		if features := sub.Plan.FeatureList(); len(features) > 0 {
			out.FeaturesSummary = strings.Join(features, ", ")
		}
	}
	if sub.EndDate != nil {
		end := models.FactDate(sub.EndDate.UTC())
		out.IsActive = !end.Before(today)
		if remaining := int(end.Sub(today).Hours() / 24); remaining > 0 {
			out.RemainingDays = remaining
		}
		duration := int(end.Sub(models.FactDate(sub.StartDate.UTC())).Hours() / 24)
		out.DurationDays = &duration
	}
	return out, nil
}

// ProcessWebhook records the event and runs the state machine unless the same event already succeeded.
func (s *Service) ProcessWebhook(ctx context.Context, event stripe.Event, payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		Provider:        providerStripe,
		ProviderEventID: eventID,
		EventType:       string(event.Type),
		PayloadSHA256:   hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Error recording webhook event", Err: err}
	}
	if !created && stored.Succeeded() {
		log.Printf("[Billing] event %s (%s) already processed", eventID, event.Type)
		return "Acknowledged: Event already processed", nil
	}

	msg, handleErr := s.HandleStripeEvent(ctx, event)
	errText := ""
	if handleErr != nil {
		errText = handleErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, errText, s.now().UTC()); err != nil {
		log.Printf("[Billing] event %s: mark processed failed: %v", eventID, err)
	}
	return msg, handleErr
}

// HandleStripeEvent applies one Stripe event. The returned string is the 200 response body;
// errors are *EventError values carrying the status to answer with.
func (s *Service) HandleStripeEvent(ctx context.Context, event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload"}
	}
	raw := event.Data.Raw
	log.Printf("[Billing] event %s: received %s", event.ID, event.Type)

	switch string(event.Type) {
	case EventCheckoutCompleted:
		return s.checkoutCompleted(ctx, raw)
	case EventInvoicePaymentSucceeded:
		return s.invoicePaid(ctx, raw)
	case EventInvoicePaymentFailed:
		return s.invoiceFailed(raw)
	case EventSubscriptionDeleted:
		return s.subscriptionCancelled(raw, true)
	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload", Err: err}
		}
		if sub.CancelAtPeriodEnd {
			return s.subscriptionCancelled(raw, false)
		}
		return s.subscriptionUpdated(&sub)
	}
	log.Printf("[Billing] event %s: unhandled type %s", event.ID, event.Type)
	return "Success: Event received but not explicitly handled by this endpoint.", nil
}

func (s *Service) checkoutCompleted(ctx context.Context, raw json.RawMessage) (string, error) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}
	userID, _ := strconv.ParseUint(cs.ClientReferenceID, 10, 64)
	var subID, customerID string
	if cs.Subscription != nil {
		subID = cs.Subscription.ID
	}
	if cs.Customer != nil {
		customerID = cs.Customer.ID
	}
	if userID == 0 || subID == "" || customerID == "" {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Missing essential IDs in session"}
	}

	user, err := s.repo.GetUser(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &EventError{Status: http.StatusNotFound, Message: fmt.Sprintf("User %d not found", userID)}
		}
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Error loading user", Err: err}
	}

	if _, err := s.repo.GetSubscriptionByStripeID(subID); err == nil {
		if user.StripeCustomerID == nil || *user.StripeCustomerID != customerID {
			if err := s.repo.SetStripeCustomerID(user.ID, customerID); err != nil {
				log.Printf("[Billing] user %d: store customer id failed: %v", user.ID, err)
			}
		}
		return "Acknowledged: Subscription already processed", nil
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Error loading subscription", Err: err}
	}

	priceID, err := s.gateway.CheckoutPriceID(ctx, cs.ID)
	if err != nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Could not determine stripe_price_id from session", Err: err}
	}
	plan, err := s.repo.GetPlanByStripePriceID(priceID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return "", &EventError{Status: http.StatusNotFound, Message: fmt.Sprintf("SubscriptionPlan with stripe_price_id %s not found", priceID)}
		}
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Error loading plan", Err: err}
	}

	stripeSub, err := s.gateway.GetSubscription(ctx, subID)
	if err != nil {
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Failed to retrieve subscription details from Stripe", Err: err}
	}

	now := s.now().UTC()
	status, end := initialStatus(stripeSub, now)
	start := now
	if t := unixTime(stripeSub.StartDate); t != nil {
		start = *t
	}

	err = s.repo.Transaction(func(repo Repository) error {
		if err := repo.SetStripeCustomerID(user.ID, customerID); err != nil {
			return err
		}
		cancelled, err := repo.CancelOtherSubscriptions(user.ID, subID)
		if err != nil {
			return err
		}
		if cancelled > 0 {
			log.Printf("[Billing] user %d: cancelled %d older subscription(s) for %s", user.ID, cancelled, subID)
		}
		return repo.CreateSubscription(&models.Subscription{
			UserID:               user.ID,
			PlanID:               plan.ID,
			StartDate:            start,
			EndDate:              end,
			Status:               status,
			StripeSubscriptionID: subID,
		})
	})
	if err != nil {
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Error creating subscription in database", Err: err}
	}
	log.Printf("[Billing] user %d: created subscription %s plan=%q status=%s", user.ID, subID, plan.Name, status)
	return "Success", nil
}

// localSubscription loads the subscription an event refers to; unknown ids answer 404 so Stripe retries.
func (s *Service) localSubscription(stripeID string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByStripeID(stripeID)
	if err == nil {
		return sub, nil
	}
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, &EventError{Status: http.StatusNotFound, Message: "UserSubscription not found", Err: err}
	}
	return nil, &EventError{Status: http.StatusInternalServerError, Message: "Error loading subscription", Err: err}
}

func (s *Service) save(sub *models.Subscription, failure string) error {
	if err := s.repo.SaveSubscription(sub); err != nil {
		return &EventError{Status: http.StatusInternalServerError, Message: failure, Err: err}
	}
	return nil
}

func (s *Service) invoicePaid(ctx context.Context, raw json.RawMessage) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return "Success", nil
	}
	sub, err := s.localSubscription(inv.Subscription.ID)
	if err != nil {
		return "", err
	}
	stripeSub, err := s.gateway.GetSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return "", &EventError{Status: http.StatusInternalServerError, Message: "Failed to retrieve subscription details from Stripe", Err: err}
	}

	changed := false
	if sub.Status == models.SubscriptionStatusTrialing && inv.BillingReason == stripe.InvoiceBillingReasonSubscriptionCycle {
		sub.Status = models.SubscriptionStatusActive
		changed = true
	}
	if sub.Status == models.SubscriptionStatusPastDue {
		sub.Status = models.SubscriptionStatusActive
		changed = true
	}
	if end := unixTime(stripeSub.CurrentPeriodEnd); end != nil && !sameInstant(end, sub.EndDate) {
		sub.EndDate = end
		changed = true
	}
	if !changed {
		return "Success", nil
	}
	if err := s.save(sub, "Error updating subscription after successful payment"); err != nil {
		return "", err
	}
	log.Printf("[Billing] subscription %s: payment succeeded, status=%s", sub.StripeSubscriptionID, sub.Status)
	return "Success", nil
}

func (s *Service) invoiceFailed(raw json.RawMessage) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return "Success", nil
	}
	sub, err := s.localSubscription(inv.Subscription.ID)
	if err != nil {
		return "", err
	}
	if sub.Status == models.SubscriptionStatusPastDue {
		return "Success", nil
	}
	sub.Status = models.SubscriptionStatusPastDue
	if err := s.save(sub, "Error updating subscription to past_due in database"); err != nil {
		return "", err
	}
	log.Printf("[Billing] subscription %s: payment failed, now past_due", sub.StripeSubscriptionID)
	return "Success", nil
}

func (s *Service) subscriptionCancelled(raw json.RawMessage, deleted bool) (string, error) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(raw, &stripeSub); err != nil {
		return "", &EventError{Status: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}
	sub, err := s.localSubscription(stripeSub.ID)
	if err != nil {
		return "", err
	}
	if sub.Status == models.SubscriptionStatusCancelled {
		return "Success", nil
	}
	sub.Status = models.SubscriptionStatusCancelled
	if end := cancellationEnd(&stripeSub, deleted); end != nil {
		sub.EndDate = end
	}
	if err := s.save(sub, "Error processing subscription cancellation in database"); err != nil {
		return "", err
	}
	log.Printf("[Billing] subscription %s: cancelled, ends %v", sub.StripeSubscriptionID, sub.EndDate)
	return "Success", nil
}

func (s *Service) subscriptionUpdated(stripeSub *stripe.Subscription) (string, error) {
	sub, err := s.localSubscription(stripeSub.ID)
	if err != nil {
		return "", err
	}

	periodEnd := unixTime(stripeSub.CurrentPeriodEnd)
	if periodEnd != nil {
		sub.EndDate = periodEnd
	}

	if priceID := subscriptionPriceID(stripeSub); priceID != "" && (sub.Plan == nil || sub.Plan.StripePriceID == nil || *sub.Plan.StripePriceID != priceID) {
		plan, err := s.repo.GetPlanByStripePriceID(priceID)
		switch {
		case err == nil:
			sub.PlanID = plan.ID
			sub.Plan = plan
		case errors.Is(err, ErrPlanNotFound):
			log.Printf("[Billing] subscription %s: price %s matches no local plan", sub.StripeSubscriptionID, priceID)
		default:
			return "", &EventError{Status: http.StatusInternalServerError, Message: "Error loading plan", Err: err}
		}
	}

	sub.Status = nextStatus(sub.Status, string(stripeSub.Status))
	if sub.Status == models.SubscriptionStatusTrialing {
		if trialEnd := unixTime(stripeSub.TrialEnd); trialEnd != nil {
			sub.EndDate = trialEnd
		} else {
			sub.Status = models.SubscriptionStatusActive
		}
	}

	if err := s.save(sub, "Error updating subscription from general update event"); err != nil {
		return "", err
	}
	log.Printf("[Billing] subscription %s: synced status=%s plan=%d", sub.StripeSubscriptionID, sub.Status, sub.PlanID)
	return "Success", nil
}
