package billing

import (
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrInvalidPayload   = errors.New("invalid stripe payload")
)

// VerifyStripeWebhook checks the Stripe-Signature header and decodes the event.
func VerifyStripeWebhook(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err == nil {
		return event, nil
	}

	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return stripe.Event{}, ErrInvalidSignature
	}
	return stripe.Event{}, ErrInvalidPayload
}
