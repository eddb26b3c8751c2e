package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweepable finds stale subscriptions and queues syncs for them.
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper runs Sweep on a cron schedule. Overlapping runs are skipped.
type Sweeper struct {
	cron     *cron.Cron
	target   Sweepable
	log      logrus.FieldLogger
	timeout  time.Duration
	stopOnce sync.Once
}

var sweepParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewSweeper validates schedule ("*/15 * * * *" or "@every 15m").
func NewSweeper(schedule string, target Sweepable, log logrus.FieldLogger) (*Sweeper, error) {
	log = orStd(log)
	cl := cronLogger{log: log}
	s := &Sweeper{
		cron: cron.New(
			cron.WithParser(sweepParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		target:  target,
		log:     log,
		timeout: 2 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs one sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.target.Sweep(ctx)
	if err != nil {
		s.log.WithError(err).Warn("subscription sweep failed")
		return 0, err
	}
	s.log.WithField("enqueued", n).Debug("subscription sweep done")
	return n, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop waits for a running sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { <-s.cron.Stop().Done() })
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{ log logrus.FieldLogger }

func kv(keysAndValues []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(kv(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(kv(keysAndValues)).WithError(err).Error("cron: " + msg)
}
