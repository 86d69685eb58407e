package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

// StripeGateway implements Gateway with the official Stripe client.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, ErrNotConfigured
	}
	api := &client.API{}
	api.Init(key, nil)
	return &StripeGateway{api: api}, nil
}

func NewStripeGatewayFromEnv() (*StripeGateway, error) {
	return NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", ""))
}

func (g *StripeGateway) CheckoutPriceID(ctx context.Context, sessionID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	cs, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return "", err
	}
	if cs.LineItems == nil || len(cs.LineItems.Data) == 0 || cs.LineItems.Data[0].Price == nil {
		return "", errors.New("checkout session has no line items")
	}
	return cs.LineItems.Data[0].Price.ID, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return g.api.Subscriptions.Get(subscriptionID, params)
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(in.UserID), 10)),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:          stripe.String(in.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(in.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx

	cs, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return cs.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	ps, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return ps.URL, nil
}
