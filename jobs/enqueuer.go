package jobs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

type insertFunc func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error

// Enqueuer implements core.Enqueuer on a river client.
type Enqueuer struct {
	insert insertFunc
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{insert: func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) error {
		_, err := client.Insert(ctx, args, opts)
		return err
	}}
}

func (e *Enqueuer) EnqueueCheckoutReconcile(ctx context.Context, checkoutSessionID string) error {
	id := strings.TrimSpace(checkoutSessionID)
	if id == "" {
		return errors.New("checkout session id required")
	}
	return e.insert(ctx, CheckoutReconcileArgs{CheckoutSessionID: id}, nil)
}

func (e *Enqueuer) EnqueueSubscriptionSync(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id required")
	}
	return e.insert(ctx, SubscriptionSyncArgs{SubscriptionID: id}, nil)
}
