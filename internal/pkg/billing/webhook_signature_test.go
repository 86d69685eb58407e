package billing

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func TestVerifyStripeWebhook(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1","object":"invoice"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: time.Now()})

	event, err := VerifyStripeWebhook(signed.Payload, signed.Header, secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventInvoicePaymentFailed, string(event.Type))
	assert.Contains(t, string(event.Data.Raw), "in_1")

	_, err = VerifyStripeWebhook(signed.Payload, signed.Header, "whsec_other")
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = VerifyStripeWebhook(signed.Payload, "", secret)
	require.ErrorIs(t, err, ErrInvalidSignature)

	bad := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(`{not json`), Secret: secret, Timestamp: time.Now()})
	_, err = VerifyStripeWebhook(bad.Payload, bad.Header, secret)
	require.ErrorIs(t, err, ErrInvalidPayload)
}
