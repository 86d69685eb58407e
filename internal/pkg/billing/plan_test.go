package billing

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/ManuelReschke/AdInsights/app/models"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current string
		stripe  string
		want    string
	}{
		{current: models.SubscriptionStatusTrialing, stripe: "active", want: models.SubscriptionStatusActive},
		{current: models.SubscriptionStatusActive, stripe: "past_due", want: models.SubscriptionStatusPastDue},
		{current: models.SubscriptionStatusActive, stripe: "canceled", want: models.SubscriptionStatusCancelled},
		{current: models.SubscriptionStatusCancelled, stripe: "active", want: models.SubscriptionStatusCancelled},
		{current: models.SubscriptionStatusActive, stripe: "", want: models.SubscriptionStatusActive},
		{current: models.SubscriptionStatusActive, stripe: "paused", want: models.SubscriptionStatusIncomplete},
	}

	for _, tt := range tests {
		if got := nextStatus(tt.current, tt.stripe); got != tt.want {
			t.Fatalf("nextStatus(%q, %q) = %q, want %q", tt.current, tt.stripe, got, tt.want)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	periodEnd := now.AddDate(0, 1, 0).Unix()

	status, end := initialStatus(&stripe.Subscription{TrialEnd: now.Add(72 * time.Hour).Unix(), CurrentPeriodEnd: periodEnd}, now)
	if status != models.SubscriptionStatusTrialing || end == nil || !end.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("expected trialing until trial end, got %q %v", status, end)
	}

	status, end = initialStatus(&stripe.Subscription{TrialEnd: now.Add(-time.Hour).Unix(), CurrentPeriodEnd: periodEnd}, now)
	if status != models.SubscriptionStatusActive || end == nil || end.Unix() != periodEnd {
		t.Fatalf("expected active until period end, got %q %v", status, end)
	}
}

func TestCancellationEnd(t *testing.T) {
	sub := &stripe.Subscription{CancelAt: 300, EndedAt: 200, CurrentPeriodEnd: 100}
	if got := cancellationEnd(sub, false); got.Unix() != 300 {
		t.Fatalf("update should prefer cancel_at, got %v", got)
	}
	if got := cancellationEnd(sub, true); got.Unix() != 200 {
		t.Fatalf("delete should prefer ended_at, got %v", got)
	}
	if got := cancellationEnd(&stripe.Subscription{CurrentPeriodEnd: 100}, true); got.Unix() != 100 {
		t.Fatalf("expected period end fallback, got %v", got)
	}
	if got := cancellationEnd(&stripe.Subscription{}, true); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
