package billing

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v79/webhook"
)

// WebhookEvent is the part of a verified Stripe event the sync jobs act on.
type WebhookEvent struct {
	ID       string
	Type     string
	ObjectID string
}

// IsCheckoutCompleted reports a finished checkout.
func (e WebhookEvent) IsCheckoutCompleted() bool {
	return e.Type == "checkout.session.completed" || e.Type == "checkout.session.async_payment_succeeded"
}

// IsSubscriptionChange reports customer.subscription.* lifecycle events.
func (e WebhookEvent) IsSubscriptionChange() bool {
	return strings.HasPrefix(e.Type, "customer.subscription.")
}

// ParseWebhook verifies the Stripe-Signature header and extracts the event.
func ParseWebhook(payload []byte, signature, secret string) (WebhookEvent, error) {
	if secret == "" {
		return WebhookEvent{}, errors.New("webhook secret not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, err
	}
	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && ev.Data.Object != nil {
		if id, ok := ev.Data.Object["id"].(string); ok {
			out.ObjectID = id
		}
	}
	return out, nil
}
