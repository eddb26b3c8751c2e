package billing

import "time"

// MetadataUserID is the metadata key linking processor objects to a user.
const MetadataUserID = "user_id"

// Subscription is the processor-side subscription as the reconciler needs it.
type Subscription struct {
	ID         string
	Status     string
	CustomerID string
	// CurrentPeriodEnd is epoch seconds; 0 means the processor did not report it.
	CurrentPeriodEnd int64
	// UserID comes from the subscription's own metadata, when present.
	UserID string
}

// CheckoutSession is a retrieved checkout session with its subscription
// expanded. Subscription is nil when the session has none attached.
type CheckoutSession struct {
	ID           string
	CustomerID   string
	UserID       string
	URL          string
	Subscription *Subscription
}

// CheckoutParams describes a subscription checkout to create.
type CheckoutParams struct {
	UserID     string
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// PeriodEnd converts the processor's epoch seconds to a UTC timestamp, or nil
// when absent.
func PeriodEnd(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}
