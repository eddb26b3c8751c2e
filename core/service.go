package core

import (
	"context"
	"time"

	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	"github.com/PaulFidika/membergate/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IdentityBackend is the slice of the auth server the sign-in flow needs.
type IdentityBackend interface {
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*gotrue.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*gotrue.Session, error)
	GetUser(ctx context.Context, accessToken string) (*gotrue.User, error)
}

// ProfileStore persists one profile row per user.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*identity.Profile, error)
	SetUsernameIfEmpty(ctx context.Context, userID uuid.UUID, username string) (bool, error)
}

// SubscriptionStore is the local cache of processor subscriptions.
type SubscriptionStore interface {
	entitlements.LatestReader
	UpsertSubscription(ctx context.Context, rec entitlements.SubscriptionRecord) (*entitlements.SubscriptionRecord, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*entitlements.SubscriptionRecord, error)
	ListStale(ctx context.Context, now time.Time, limit int) ([]entitlements.SubscriptionRecord, error)
}

// PaymentProcessor reads checkout sessions and subscriptions.
type PaymentProcessor interface {
	RetrieveCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, id string) (*billing.Subscription, error)
}

// Enqueuer hands reconciliation work to the background runner.
type Enqueuer interface {
	EnqueueCheckoutReconcile(ctx context.Context, checkoutSessionID string) error
	EnqueueSubscriptionSync(ctx context.Context, subscriptionID string) error
}

// Config holds redirect destinations and batch sizes.
type Config struct {
	LoginPath      string // "/login"
	MemberRedirect string // "/videos"
	OfferRedirect  string // "/pricing"
	SweepBatch     int
}

func (c Config) defaulted() Config {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.MemberRedirect == "" {
		c.MemberRedirect = "/videos"
	}
	if c.OfferRedirect == "" {
		c.OfferRedirect = "/pricing"
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	return c
}

// Deps are the collaborators a Service is built from. Log and Metrics may be nil.
type Deps struct {
	Identity      IdentityBackend
	Profiles      ProfileStore
	Subscriptions SubscriptionStore
	Payments      PaymentProcessor
	Enqueuer      Enqueuer
	Logins        LoginRecorder
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger
}

// Service wires the entitlement core together. Its parts can also be used
// on their own.
type Service struct {
	cfg       Config
	Resolver  *entitlements.Resolver
	Allocator *Allocator
	Reconcile *Reconciler
	Callback  *CallbackRouter
	Syncer    *SubscriptionSyncer
	enqueuer  Enqueuer
	log       logrus.FieldLogger
}

func NewService(cfg Config, d Deps) *Service {
	cfg = cfg.defaulted()
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	resolver := entitlements.NewResolver(d.Subscriptions)
	alloc := NewAllocator(d.Profiles, d.Log).WithMetrics(d.Metrics)
	s := &Service{
		cfg:       cfg,
		Resolver:  resolver,
		Allocator: alloc,
		Reconcile: NewReconciler(d.Payments, d.Subscriptions, d.Log).WithMetrics(d.Metrics),
		Callback: &CallbackRouter{
			cfg:       cfg,
			identity:  d.Identity,
			profiles:  d.Profiles,
			allocator: alloc,
			resolver:  resolver,
			logins:    d.Logins,
			metrics:   d.Metrics,
			log:       d.Log,
			now:       time.Now,
		},
		Syncer: NewSubscriptionSyncer(d.Payments, d.Subscriptions, d.Enqueuer, d.Log).WithMetrics(d.Metrics).WithBatch(cfg.SweepBatch),
		log:    d.Log,
	}
	s.enqueuer = d.Enqueuer
	if s.enqueuer == nil {
		s.enqueuer = &InlineEnqueuer{Reconciler: s.Reconcile, Syncer: s.Syncer}
		s.Syncer.enqueuer = s.enqueuer
	}
	return s
}

// Enqueuer is where webhook and sweep work goes.
func (s *Service) Enqueuer() Enqueuer { return s.enqueuer }

// SetEnqueuer swaps in a job queue once it has been built around this service.
func (s *Service) SetEnqueuer(e Enqueuer) {
	if e == nil {
		return
	}
	s.enqueuer = e
	s.Syncer.enqueuer = e
}

func (s *Service) Config() Config { return s.cfg }

// Entitlement is the shared gate used by every page and route.
func (s *Service) Entitlement(ctx context.Context, userID uuid.UUID) entitlements.Entitlement {
	ent, err := s.Resolver.Resolve(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID.String()).Warn("entitlement read failed; treating as not entitled")
	}
	return ent
}
