// Package jobs runs checkout reconciliation and subscription syncs on a
// river queue, plus a cron sweep that catches subscriptions whose period
// ended without a webhook.
package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// CheckoutReconcileArgs reconciles one completed checkout session.
type CheckoutReconcileArgs struct {
	CheckoutSessionID string `json:"checkout_session_id"`
}

func (CheckoutReconcileArgs) Kind() string { return "checkout_reconcile" }

// Webhook redeliveries and the confirm page often race; one job per session
// per minute is enough.
func (CheckoutReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: time.Minute},
	}
}

// SubscriptionSyncArgs refreshes one cached subscription from the processor.
type SubscriptionSyncArgs struct {
	SubscriptionID string `json:"subscription_id"`
}

func (SubscriptionSyncArgs) Kind() string { return "subscription_sync" }

func (SubscriptionSyncArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: time.Minute},
	}
}
