package billing

import (
	"context"
	"errors"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeProcessor talks to Stripe through an explicitly constructed client.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor builds a processor for secretKey. backends may be nil
// for the default Stripe endpoints; tests point them at a local server.
func NewStripeProcessor(secretKey string, backends *stripe.Backends) *StripeProcessor {
	return &StripeProcessor{api: client.New(secretKey, backends)}
}

// RetrieveCheckoutSession fetches a checkout session with its subscription expanded.
func (p *StripeProcessor) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	out := &CheckoutSession{ID: s.ID, URL: s.URL}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Metadata != nil {
		out.UserID = strings.TrimSpace(s.Metadata[MetadataUserID])
	}
	if s.Subscription != nil && s.Subscription.ID != "" {
		out.Subscription = fromStripeSubscription(s.Subscription)
		if out.Subscription.CustomerID == "" {
			out.Subscription.CustomerID = out.CustomerID
		}
	}
	return out, nil
}

// RetrieveSubscription fetches a subscription by id.
func (p *StripeProcessor) RetrieveSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return fromStripeSubscription(s), nil
}

// CreateCheckoutSession starts a subscription checkout. The user id is stored
// on both the session and the subscription so either can be linked back.
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutParams) (string, error) {
	if in.PriceID == "" || in.UserID == "" {
		return "", errors.New("price_id and user_id are required")
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: in.UserID},
		},
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, in.UserID)
	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// CreatePortalSession opens the billing portal for a customer.
func (p *StripeProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", errors.New("customer_id is required")
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

func fromStripeSubscription(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:               s.ID,
		Status:           string(s.Status),
		CurrentPeriodEnd: s.CurrentPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Metadata != nil {
		out.UserID = strings.TrimSpace(s.Metadata[MetadataUserID])
	}
	return out
}
