package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	memorystore "github.com/PaulFidika/membergate/storage/memory"
	"github.com/google/uuid"
)

type fakeIdentity struct {
	exchangeErr error
	setErr      error
	userErr     error
	user        *gotrue.User

	exchanged, set, getUser int
}

func (f *fakeIdentity) ExchangeCodeForSession(_ context.Context, code, _ string) (*gotrue.Session, error) {
	f.exchanged++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &gotrue.Session{AccessToken: "code-" + code, RefreshToken: "rt"}, nil
}

func (f *fakeIdentity) SetSession(_ context.Context, access, refresh string) (*gotrue.Session, error) {
	f.set++
	if f.setErr != nil {
		return nil, f.setErr
	}
	return &gotrue.Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (f *fakeIdentity) GetUser(_ context.Context, access string) (*gotrue.User, error) {
	f.getUser++
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, gotrue.ErrNoUser
	}
	return f.user, nil
}

// spyProfiles counts reads and writes on top of the in-memory store.
type spyProfiles struct {
	*memorystore.ProfileStore
	mu        sync.Mutex
	ensureErr error
	setErr    error
	ensures   int
	gets      int
	sets      []string
}

func newSpyProfiles() *spyProfiles {
	return &spyProfiles{ProfileStore: memorystore.NewProfileStore()}
}

func (s *spyProfiles) EnsureProfile(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	s.ensures++
	s.mu.Unlock()
	if s.ensureErr != nil {
		return s.ensureErr
	}
	return s.ProfileStore.EnsureProfile(ctx, id)
}

func (s *spyProfiles) GetProfile(ctx context.Context, id uuid.UUID) (*identity.Profile, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.ProfileStore.GetProfile(ctx, id)
}

func (s *spyProfiles) SetUsernameIfEmpty(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	s.mu.Lock()
	s.sets = append(s.sets, name)
	s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	return s.ProfileStore.SetUsernameIfEmpty(ctx, id, name)
}

func (s *spyProfiles) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures + s.gets
}

type spySubs struct {
	*memorystore.SubscriptionStore
	latestErr error
	upsertErr error
	latest    int
	upserts   int
}

func newSpySubs() *spySubs {
	return &spySubs{SubscriptionStore: memorystore.NewSubscriptionStore()}
}

func (s *spySubs) LatestForUser(ctx context.Context, id uuid.UUID) (*entitlements.SubscriptionRecord, error) {
	s.latest++
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.SubscriptionStore.LatestForUser(ctx, id)
}

func (s *spySubs) UpsertSubscription(ctx context.Context, rec entitlements.SubscriptionRecord) (*entitlements.SubscriptionRecord, error) {
	s.upserts++
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	return s.SubscriptionStore.UpsertSubscription(ctx, rec)
}

type fakePayments struct {
	sessions map[string]*billing.CheckoutSession
	subs     map[string]*billing.Subscription
	err      error
	calls    int
}

func (f *fakePayments) RetrieveCheckoutSession(_ context.Context, id string) (*billing.CheckoutSession, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout.session")
	}
	return s, nil
}

func (f *fakePayments) RetrieveSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return s, nil
}

type recordingEnqueuer struct {
	reconciles []string
	syncs      []string
	err        error
}

func (e *recordingEnqueuer) EnqueueCheckoutReconcile(_ context.Context, id string) error {
	e.reconciles = append(e.reconciles, id)
	return e.err
}

func (e *recordingEnqueuer) EnqueueSubscriptionSync(_ context.Context, id string) error {
	e.syncs = append(e.syncs, id)
	return e.err
}

type recordingLogins struct{ events []LoginEvent }

func (r *recordingLogins) RecordLogin(_ context.Context, ev LoginEvent) {
	r.events = append(r.events, ev)
}

func ptrTime(t time.Time) *time.Time { return &t }
