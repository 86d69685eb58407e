package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
)

var (
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrPlanNotPurchasable   = errors.New("subscription plan has no stripe price")
	ErrNoBillingAccount     = errors.New("user has no stripe customer")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotConfigured        = errors.New("STRIPE_SECRET_KEY is not configured")
)

// EventError is a webhook processing failure carrying the HTTP status Stripe should see.
// 404 and 5xx make Stripe retry the delivery.
type EventError struct {
	Status  int
	Message string
	Err     error
}

func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// CheckoutInput describes a subscription checkout for one user and one price.
type CheckoutInput struct {
	UserID     uint
	Email      string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Gateway is the part of the Stripe API the billing service calls.
type Gateway interface {
	CheckoutPriceID(ctx context.Context, sessionID string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// TrialStatus summarizes the newest trialing subscription of a user.
type TrialStatus struct {
	PlanName        string     `json:"plan_name"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	IsActive        bool       `json:"is_active"`
	RemainingDays   int        `json:"remaining_days"`
	DurationDays    *int       `json:"duration_days"`
	FeaturesSummary string     `json:"features_summary"`
}
