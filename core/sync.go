package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SubscriptionSyncer refreshes cached subscriptions from the processor after
// webhooks and for rows whose period ended without an update.
type SubscriptionSyncer struct {
	payments PaymentProcessor
	subs     SubscriptionStore
	enqueuer Enqueuer
	batch    int
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewSubscriptionSyncer(payments PaymentProcessor, subs SubscriptionStore, enq Enqueuer, log logrus.FieldLogger) *SubscriptionSyncer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SubscriptionSyncer{payments: payments, subs: subs, enqueuer: enq, batch: 100, log: log, now: time.Now}
}

func (s *SubscriptionSyncer) WithMetrics(m *metrics.Metrics) *SubscriptionSyncer {
	s.metrics = m
	return s
}

func (s *SubscriptionSyncer) WithBatch(n int) *SubscriptionSyncer {
	if n > 0 {
		s.batch = n
	}
	return s
}

func (s *SubscriptionSyncer) WithClock(now func() time.Time) *SubscriptionSyncer {
	s.now = now
	return s
}

// Sync re-reads one subscription and upserts it. The owner comes from the
// subscription's metadata.user_id or, failing that, the row already cached.
func (s *SubscriptionSyncer) Sync(ctx context.Context, subscriptionID string) (*entitlements.SubscriptionRecord, error) {
	const op = "sync_subscription"
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		s.metrics.IncSync(string(KindInvalidInput))
		return nil, fail(KindInvalidInput, op, errors.New("missing subscription id"))
	}
	if s.payments == nil || s.subs == nil {
		s.metrics.IncSync(string(KindCollaborator))
		return nil, fail(KindCollaborator, op, errors.New("billing not configured"))
	}
	log := s.log.WithField("subscription_id", id)

	sub, err := s.payments.RetrieveSubscription(ctx, id)
	if err != nil {
		s.metrics.IncSync(string(KindCollaborator))
		return nil, fail(KindCollaborator, op, err)
	}
	var existing *entitlements.SubscriptionRecord
	if cached, err := s.subs.GetBySubscriptionID(ctx, id); err == nil {
		existing = cached
	} else if !errors.Is(err, billing.ErrSubscriptionNotFound) {
		s.metrics.IncSync(string(KindCollaborator))
		return nil, fail(KindCollaborator, op, err)
	}

	userID, err := uuid.Parse(sub.UserID)
	if err != nil || userID == uuid.Nil {
		if existing == nil {
			s.metrics.IncSync(string(KindMissingLinkage))
			log.Warn("subscription has no owner; skipping")
			return nil, fail(KindMissingLinkage, op, errNoUserID)
		}
		userID = existing.UserID
	}
	customer := sub.CustomerID
	if customer == "" && existing != nil {
		customer = existing.StripeCustomerID
	}
	saved, err := s.subs.UpsertSubscription(ctx, entitlements.SubscriptionRecord{
		UserID:               userID,
		Status:               sub.Status,
		CurrentPeriodEnd:     billing.PeriodEnd(sub.CurrentPeriodEnd),
		StripeCustomerID:     customer,
		StripeSubscriptionID: sub.ID,
	})
	if err != nil {
		s.metrics.IncSync(string(KindCollaborator))
		return nil, fail(KindCollaborator, op, err)
	}
	s.metrics.IncSync("updated")
	log.WithFields(logrus.Fields{"user_id": userID.String(), "status": sub.Status}).Info("subscription synced")
	return saved, nil
}

// Sweep enqueues a sync for each cached row still marked active whose
// period has ended. It returns how many were enqueued.
func (s *SubscriptionSyncer) Sweep(ctx context.Context) (int, error) {
	if s.subs == nil || s.enqueuer == nil {
		return 0, nil
	}
	stale, err := s.subs.ListStale(ctx, s.now(), s.batch)
	if err != nil {
		return 0, fail(KindCollaborator, "sweep", err)
	}
	n := 0
	for _, rec := range stale {
		if err := s.enqueuer.EnqueueSubscriptionSync(ctx, rec.StripeSubscriptionID); err != nil {
			s.log.WithError(err).WithField("subscription_id", rec.StripeSubscriptionID).Warn("enqueue sync failed")
			continue
		}
		n++
	}
	if n > 0 {
		s.log.WithField("count", n).Info("stale subscriptions enqueued")
	}
	return n, nil
}

// InlineEnqueuer runs work on the caller's goroutine. Used when no job
// queue is configured.
type InlineEnqueuer struct {
	Reconciler *Reconciler
	Syncer     *SubscriptionSyncer
}

func (e *InlineEnqueuer) EnqueueCheckoutReconcile(ctx context.Context, checkoutSessionID string) error {
	_, err := e.Reconciler.Reconcile(ctx, checkoutSessionID)
	return err
}

func (e *InlineEnqueuer) EnqueueSubscriptionSync(ctx context.Context, subscriptionID string) error {
	_, err := e.Syncer.Sync(ctx, subscriptionID)
	return err
}
