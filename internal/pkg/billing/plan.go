package billing

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/ManuelReschke/AdInsights/app/models"
)

// unixTime converts a Stripe timestamp; zero means "not set".
func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// initialStatus picks trialing while the trial still runs, active otherwise, and the matching end date.
func initialStatus(sub *stripe.Subscription, now time.Time) (string, *time.Time) {
	if trialEnd := unixTime(sub.TrialEnd); trialEnd != nil && trialEnd.After(now) {
		return models.SubscriptionStatusTrialing, trialEnd
	}
	return models.SubscriptionStatusActive, unixTime(sub.CurrentPeriodEnd)
}

// cancellationEnd is the instant access ends for a cancelled subscription.
func cancellationEnd(sub *stripe.Subscription, deleted bool) *time.Time {
	candidates := []int64{sub.CancelAt, sub.EndedAt, sub.CurrentPeriodEnd}
	if deleted {
		candidates = []int64{sub.EndedAt, sub.CancelAt, sub.CurrentPeriodEnd}
	}
	for _, ts := range candidates {
		if t := unixTime(ts); t != nil {
			return t
		}
	}
	return nil
}

// subscriptionPriceID returns the price of the first subscription item.
func subscriptionPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

// nextStatus applies a Stripe status to the local one. Cancellation is sticky.
func nextStatus(current, stripeStatus string) string {
	if strings.TrimSpace(stripeStatus) == "" {
		return current
	}
	next := models.SubscriptionStatusFromStripe(stripeStatus)
	if current == models.SubscriptionStatusCancelled && next != models.SubscriptionStatusCancelled {
		return current
	}
	return next
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
