package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authgin "github.com/PaulFidika/membergate/adapters/gin"
	"github.com/PaulFidika/membergate/adapters/gin/handlers"
	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/config"
	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/gallery"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	"github.com/PaulFidika/membergate/jobs"
	"github.com/PaulFidika/membergate/metrics"
	memorylimiter "github.com/PaulFidika/membergate/ratelimit/memory"
	redislimiter "github.com/PaulFidika/membergate/ratelimit/redis"
	memorystore "github.com/PaulFidika/membergate/storage/memory"
	redisstore "github.com/PaulFidika/membergate/storage/redis"
	"github.com/cenkalti/backoff/v5"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// defaultLimits are requests per minute for each rate-limit bucket.
var defaultLimits = map[string]int{
	ginutil.RLConfirm:  10,
	ginutil.RLCheckout: 10,
	ginutil.RLCallback: 30,
	ginutil.RLSignin:   20,
	ginutil.RLAdmin:    10,
	ginutil.RLPortal:   10,
	ginutil.RLProfile:  30,
	ginutil.RLWebhook:  300,
}

type app struct {
	cfg     *config.AppConfig
	log     *logrus.Logger
	pool    *pgxpool.Pool
	rdb     *redis.Client
	svc     *core.Service
	river   *river.Client[pgx.Tx]
	sweeper *jobs.Sweeper
	engine  *gin.Engine
	closers []func()
}

func loadConfig() (*config.AppConfig, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	cfg.ConfigureLogger(log)
	return cfg, log, nil
}

// openPool connects to Postgres, retrying while the database comes up.
func openPool(ctx context.Context, cfg *config.AppConfig, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.Postgres.URI)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		pc.MaxConns = cfg.Postgres.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := pool.Ping(ctx); err != nil {
			log.WithError(err).Warn("postgres not ready")
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// buildApp wires stores, clients and the HTTP engine. Without a Postgres URI
// every store is in memory and webhook work runs inline. withQueue starts
// nothing; it only decides whether the river client is built.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger, withQueue bool) (*app, error) {
	a := &app{cfg: cfg, log: log}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(reg)

	auth, err := gotrue.NewClient(cfg.GoTrue())
	if err != nil {
		return nil, err
	}
	stripeProc := billing.NewStripeProcessor(cfg.Stripe.SecretKey, nil)

	var (
		subs     core.SubscriptionStore
		profiles interface {
			core.ProfileStore
			handlers.Profiles
		}
		videos gallery.Lister
	)
	if cfg.Postgres.URI != "" {
		a.pool, err = openPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.pool.Close)
		subs = billing.NewStore(a.pool, "")
		profiles = identity.NewStore(a.pool, "")
		videos = gallery.NewStore(a.pool, "")
	} else {
		log.Warn("postgres.uri not set; using in-memory stores")
		subs = memorystore.NewSubscriptionStore()
		profiles = memorystore.NewProfileStore()
		videos = memorystore.NewVideoStore()
	}

	var (
		flows   gotrue.FlowCache
		limiter ginutil.RateLimiter
	)
	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = a.rdb.Close() })
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		flows = redisstore.NewFlowCache(a.rdb, "membergate:flow:", cfg.Supabase.FlowTTL)
		rl := make(map[string]redislimiter.Limit, len(defaultLimits))
		for k, n := range defaultLimits {
			rl[k] = redislimiter.Limit{Limit: n, Window: time.Minute}
		}
		limiter = redislimiter.New(a.rdb, rl)
	} else {
		fc := memorystore.NewFlowCache(cfg.Supabase.FlowTTL)
		a.closers = append(a.closers, func() { _ = fc.Close() })
		flows = fc
		ml := make(map[string]memorylimiter.Limit, len(defaultLimits))
		for k, n := range defaultLimits {
			ml[k] = memorylimiter.Limit{Limit: n, Window: time.Minute}
		}
		limiter = memorylimiter.New(ml)
	}

	a.svc = core.NewService(cfg.Core(), core.Deps{
		Identity:      auth,
		Profiles:      profiles,
		Subscriptions: subs,
		Payments:      stripeProc,
		Logins:        core.LogLoginRecorder{Log: log},
		Metrics:       m,
		Log:           log,
	})

	if withQueue && a.pool != nil {
		a.river, err = jobs.NewClient(a.pool, a.svc, cfg.Jobs.Workers, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.svc.SetEnqueuer(jobs.NewEnqueuer(a.river))
		a.sweeper, err = jobs.NewSweeper(cfg.Jobs.SweepSchedule, a.svc.Syncer, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	env := &handlers.Env{
		Svc:           a.svc,
		Auth:          auth,
		Billing:       stripeProc,
		Profiles:      profiles,
		Videos:        videos,
		Flows:         flows,
		Cookies:       ginutil.Cookies{Secure: cfg.HTTP.SecureCookies},
		Log:           log,
		SiteURL:       cfg.HTTP.SiteURL,
		PriceID:       cfg.Stripe.PriceID,
		FlowTTL:       cfg.Supabase.FlowTTL,
		AdminSecret:   cfg.Admin.Secret,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Diag:          cfg.Diag(),
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.engine = authgin.NewService(authgin.Options{
		Env:       env,
		Verifier:  auth.Verifier(),
		Refresher: auth,
		Limiter:   limiter,
		Gatherer:  reg,
		Log:       log,
	}).Engine()
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.river != nil {
		if err := a.river.Start(ctx); err != nil {
			return fmt.Errorf("start job workers: %w", err)
		}
		a.sweeper.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.engine,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": Version}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.river != nil {
		if err := a.river.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("stop job workers")
		}
	}
	return nil
}
