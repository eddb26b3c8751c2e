package entitlements

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses reported by the payment processor. The set is not
// validated exhaustively; unknown values simply do not entitle.
const (
	StatusActive            = "active"
	StatusTrialing          = "trialing"
	StatusPastDue           = "past_due"
	StatusCanceled          = "canceled"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusUnpaid            = "unpaid"
	StatusPaused            = "paused"
)

// SubscriptionRecord is the last known state of a user's paid entitlement as
// cached in the subscriptions table.
type SubscriptionRecord struct {
	UserID               uuid.UUID  `json:"user_id"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	// Revision is assigned by the store and grows on every insert or update.
	Revision  int64     `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entitlement is the derived verdict for a user. It is never persisted.
type Entitlement struct {
	Entitled bool                `json:"entitled"`
	Record   *SubscriptionRecord `json:"subscription,omitempty"`
}

// Status returns the record status, or "" when there is no record.
func (e Entitlement) Status() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.Status
}
