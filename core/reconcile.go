package core

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	errNoSubscription = errors.New("checkout session has no subscription")
	errNoUserID       = errors.New("checkout session has no metadata.user_id")
	errBadUserID      = errors.New("metadata.user_id is not a uuid")
)

// ReconcileResult reports what a confirmation wrote.
type ReconcileResult struct {
	Status         string    `json:"status"`
	UserID         uuid.UUID `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
}

// Reconciler copies a completed checkout's subscription into the local
// store. It is idempotent and never retries on its own.
type Reconciler struct {
	payments PaymentProcessor
	subs     SubscriptionStore
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewReconciler(payments PaymentProcessor, subs SubscriptionStore, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{payments: payments, subs: subs, log: log}
}

func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Reconcile confirms one checkout session.
func (r *Reconciler) Reconcile(ctx context.Context, checkoutSessionID string) (ReconcileResult, error) {
	const op = "reconcile"
	id := strings.TrimSpace(checkoutSessionID)
	log := r.log.WithField("checkout_session_id", id)
	if id == "" {
		r.metrics.IncReconcile(string(KindInvalidInput))
		return ReconcileResult{}, fail(KindInvalidInput, op, errors.New("missing session_id"))
	}
	if r.payments == nil || r.subs == nil {
		r.metrics.IncReconcile(string(KindCollaborator))
		return ReconcileResult{}, fail(KindCollaborator, op, errors.New("billing not configured"))
	}

	sess, err := r.payments.RetrieveCheckoutSession(ctx, id)
	if err != nil {
		log.WithError(err).Warn("retrieve checkout session failed")
		r.metrics.IncReconcile(string(KindCollaborator))
		return ReconcileResult{}, fail(KindCollaborator, op, err)
	}
	rec, err := linkCheckout(sess)
	if err != nil {
		log.WithError(err).Warn("checkout session cannot be linked to a user")
		r.metrics.IncReconcile(string(KindMissingLinkage))
		return ReconcileResult{}, fail(KindMissingLinkage, op, err)
	}

	saved, err := r.subs.UpsertSubscription(ctx, rec)
	if err != nil {
		log.WithError(err).Error("subscription upsert failed")
		r.metrics.IncReconcile(string(KindCollaborator))
		return ReconcileResult{}, fail(KindCollaborator, op, err)
	}
	status := rec.Status
	if saved != nil {
		status = saved.Status
	}
	r.metrics.IncReconcile(status)
	log.WithFields(logrus.Fields{
		"user_id":         rec.UserID.String(),
		"subscription_id": rec.StripeSubscriptionID,
		"status":          status,
	}).Info("checkout reconciled")
	return ReconcileResult{Status: status, UserID: rec.UserID, SubscriptionID: rec.StripeSubscriptionID}, nil
}

// linkCheckout builds the record to write, or explains why it cannot.
func linkCheckout(sess *billing.CheckoutSession) (entitlements.SubscriptionRecord, error) {
	if sess == nil || sess.Subscription == nil || sess.Subscription.ID == "" {
		return entitlements.SubscriptionRecord{}, errNoSubscription
	}
	// only the session's own metadata links a checkout to a user
	if sess.UserID == "" {
		return entitlements.SubscriptionRecord{}, errNoUserID
	}
	userID, err := uuid.Parse(sess.UserID)
	if err != nil || userID == uuid.Nil {
		return entitlements.SubscriptionRecord{}, errBadUserID
	}
	customer := sess.CustomerID
	if customer == "" {
		customer = sess.Subscription.CustomerID
	}
	return entitlements.SubscriptionRecord{
		UserID:               userID,
		Status:               sess.Subscription.Status,
		CurrentPeriodEnd:     billing.PeriodEnd(sess.Subscription.CurrentPeriodEnd),
		StripeCustomerID:     customer,
		StripeSubscriptionID: sess.Subscription.ID,
	}, nil
}
