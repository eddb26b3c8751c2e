package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	err   error
	calls []string
}

func (f *fakeReconciler) Reconcile(_ context.Context, id string) (core.ReconcileResult, error) {
	f.calls = append(f.calls, id)
	return core.ReconcileResult{Status: "active"}, f.err
}

type fakeSyncer struct {
	err   error
	calls []string
}

func (f *fakeSyncer) Sync(_ context.Context, id string) (*entitlements.SubscriptionRecord, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return &entitlements.SubscriptionRecord{StripeSubscriptionID: id}, nil
}

func TestArgs(t *testing.T) {
	assert.Equal(t, "checkout_reconcile", CheckoutReconcileArgs{}.Kind())
	assert.Equal(t, "subscription_sync", SubscriptionSyncArgs{}.Kind())
	opts := CheckoutReconcileArgs{}.InsertOpts()
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, 10, opts.MaxAttempts)
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(&core.Error{Kind: core.KindMissingLinkage, Op: "reconcile"}))
	assert.True(t, permanent(&core.Error{Kind: core.KindInvalidInput, Op: "reconcile"}))
	assert.False(t, permanent(&core.Error{Kind: core.KindCollaborator, Op: "reconcile"}))
	assert.False(t, permanent(errors.New("timeout")))
}

func TestCheckoutReconcileWorker(t *testing.T) {
	log, _ := test.NewNullLogger()
	rec := &fakeReconciler{}
	w := &CheckoutReconcileWorker{Reconciler: rec, Log: log}
	job := &river.Job[CheckoutReconcileArgs]{Args: CheckoutReconcileArgs{CheckoutSessionID: "cs_1"}}

	require.NoError(t, w.Work(context.Background(), job))
	assert.Equal(t, []string{"cs_1"}, rec.calls)

	rec.err = &core.Error{Kind: core.KindCollaborator, Op: "reconcile", Err: errors.New("stripe down")}
	err := w.Work(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, core.KindCollaborator, core.KindOf(err), "transient errors are returned for retry")

	rec.err = &core.Error{Kind: core.KindMissingLinkage, Op: "reconcile"}
	assert.Error(t, w.Work(context.Background(), job))
}

func TestSubscriptionSyncWorker(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := &fakeSyncer{}
	w := &SubscriptionSyncWorker{Syncer: s, Log: log}
	job := &river.Job[SubscriptionSyncArgs]{Args: SubscriptionSyncArgs{SubscriptionID: "sub_1"}}
	require.NoError(t, w.Work(context.Background(), job))
	assert.Equal(t, []string{"sub_1"}, s.calls)

	s.err = errors.New("boom")
	assert.Error(t, w.Work(context.Background(), job))
}

func TestEnqueuer(t *testing.T) {
	var got []river.JobArgs
	e := &Enqueuer{insert: func(_ context.Context, args river.JobArgs, _ *river.InsertOpts) error {
		got = append(got, args)
		return nil
	}}
	ctx := context.Background()
	require.NoError(t, e.EnqueueCheckoutReconcile(ctx, " cs_1 "))
	require.NoError(t, e.EnqueueSubscriptionSync(ctx, "sub_1"))
	assert.Error(t, e.EnqueueCheckoutReconcile(ctx, ""))
	assert.Error(t, e.EnqueueSubscriptionSync(ctx, "  "))
	require.Len(t, got, 2)
	assert.Equal(t, CheckoutReconcileArgs{CheckoutSessionID: "cs_1"}, got[0])
	assert.Equal(t, SubscriptionSyncArgs{SubscriptionID: "sub_1"}, got[1])

	var _ core.Enqueuer = e
}

type countingSweep struct {
	n   atomic.Int32
	err error
}

func (c *countingSweep) Sweep(context.Context) (int, error) {
	c.n.Add(1)
	return 3, c.err
}

func TestSweeper(t *testing.T) {
	log, hook := test.NewNullLogger()
	target := &countingSweep{}

	_, err := NewSweeper("not a schedule", target, log)
	assert.Error(t, err)

	s, err := NewSweeper("@every 15m", target, log)
	require.NoError(t, err)
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	target.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(2), target.n.Load())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "subscription sweep failed", hook.LastEntry().Message)

	s.Start()
	s.Stop()
	s.Stop()
}

func TestCronLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	cronLogger{log: log}.Error(errors.New("x"), "panic", "job", "sweep")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "sweep", hook.LastEntry().Data["job"])
}
