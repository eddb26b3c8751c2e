package jobs

import (
	"context"

	"github.com/PaulFidika/membergate/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"
)

// NewClient builds a river client whose workers drive svc. Start it with
// Start and hand NewEnqueuer(client) to svc.SetEnqueuer.
func NewClient(pool *pgxpool.Pool, svc *core.Service, maxWorkers int, log logrus.FieldLogger) (*river.Client[pgx.Tx], error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &CheckoutReconcileWorker{Reconciler: svc.Reconcile, Log: log})
	river.AddWorker(workers, &SubscriptionSyncWorker{Syncer: svc.Syncer, Log: log})
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
}

// Migrate installs or upgrades river's own tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	m, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	_, err = m.Migrate(ctx, rivermigrate.DirectionUp, nil)
	return err
}
