package jobs

import (
	"context"
	"time"

	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

type Reconciler interface {
	Reconcile(ctx context.Context, checkoutSessionID string) (core.ReconcileResult, error)
}

type Syncer interface {
	Sync(ctx context.Context, subscriptionID string) (*entitlements.SubscriptionRecord, error)
}

// permanent reports failures a retry cannot fix.
func permanent(err error) bool {
	switch core.KindOf(err) {
	case core.KindInvalidInput, core.KindMissingLinkage:
		return true
	}
	return false
}

func jobFields[T river.JobArgs](job *river.Job[T]) logrus.Fields {
	f := logrus.Fields{"job_kind": job.Args.Kind()}
	if job.JobRow != nil {
		f["job_id"] = job.ID
		f["attempt"] = job.Attempt
	}
	return f
}

// CheckoutReconcileWorker runs the reconciler for queued checkouts.
type CheckoutReconcileWorker struct {
	river.WorkerDefaults[CheckoutReconcileArgs]
	Reconciler Reconciler
	Log        logrus.FieldLogger
}

func (w *CheckoutReconcileWorker) Timeout(*river.Job[CheckoutReconcileArgs]) time.Duration {
	return 30 * time.Second
}

func (w *CheckoutReconcileWorker) Work(ctx context.Context, job *river.Job[CheckoutReconcileArgs]) error {
	log := orStd(w.Log).WithFields(jobFields(job)).WithField("checkout_session_id", job.Args.CheckoutSessionID)
	res, err := w.Reconciler.Reconcile(ctx, job.Args.CheckoutSessionID)
	if err != nil {
		if permanent(err) {
			log.WithError(err).Warn("checkout cannot be reconciled; cancelling job")
			return river.JobCancel(err)
		}
		return err
	}
	log.WithField("status", res.Status).Debug("checkout reconciled")
	return nil
}

// SubscriptionSyncWorker refreshes cached subscriptions.
type SubscriptionSyncWorker struct {
	river.WorkerDefaults[SubscriptionSyncArgs]
	Syncer Syncer
	Log    logrus.FieldLogger
}

func (w *SubscriptionSyncWorker) Timeout(*river.Job[SubscriptionSyncArgs]) time.Duration {
	return 30 * time.Second
}

func (w *SubscriptionSyncWorker) Work(ctx context.Context, job *river.Job[SubscriptionSyncArgs]) error {
	log := orStd(w.Log).WithFields(jobFields(job)).WithField("subscription_id", job.Args.SubscriptionID)
	if _, err := w.Syncer.Sync(ctx, job.Args.SubscriptionID); err != nil {
		if permanent(err) {
			log.WithError(err).Warn("subscription cannot be linked; cancelling job")
			return river.JobCancel(err)
		}
		return err
	}
	return nil
}

func orStd(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
