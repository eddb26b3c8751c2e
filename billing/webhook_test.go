package billing

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func TestParseWebhook(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","api_version":"2024-06-20",
		"data":{"object":{"id":"sub_42","object":"subscription","status":"canceled"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: time.Now()})

	ev, err := ParseWebhook(payload, signed.Header, secret)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.ID != "evt_1" || ev.ObjectID != "sub_42" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.IsSubscriptionChange() || ev.IsCheckoutCompleted() {
		t.Fatalf("misclassified event %q", ev.Type)
	}
}

func TestParseWebhook_BadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other", Timestamp: time.Now()})
	if _, err := ParseWebhook(payload, signed.Header, "whsec_test"); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := ParseWebhook(payload, signed.Header, ""); err == nil {
		t.Fatalf("expected error without secret")
	}
}
