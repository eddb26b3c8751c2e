package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/google/uuid"
)

type routerFixture struct {
	identity *fakeIdentity
	profiles *spyProfiles
	subs     *spySubs
	logins   *recordingLogins
	svc      *Service
}

func newRouterFixture(user *gotrue.User) *routerFixture {
	f := &routerFixture{
		identity: &fakeIdentity{user: user},
		profiles: newSpyProfiles(),
		subs:     newSpySubs(),
		logins:   &recordingLogins{},
	}
	f.svc = NewService(Config{}, Deps{
		Identity:      f.identity,
		Profiles:      f.profiles,
		Subscriptions: f.subs,
		Logins:        f.logins,
		Log:           quietLogger(),
	})
	return f
}

func (f *routerFixture) handle(in CallbackInput) CallbackResult {
	return f.svc.Callback.Handle(context.Background(), in)
}

func TestCallback_CodeExchangeFailure(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	f.identity.exchangeErr = errors.New("invalid flow state")

	res := f.handle(CallbackInput{Code: "abc"})
	if res.Redirect != "/login?error=callback-code" {
		t.Fatalf("redirect = %q", res.Redirect)
	}
	if res.FailedStep != StepExchangingSession || res.Session != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if KindOf(res.Err) != KindTransportExchange {
		t.Fatalf("expected transport exchange error, got %v", res.Err)
	}
	if f.identity.getUser != 0 || f.profiles.reads() != 0 || f.subs.latest != 0 {
		t.Fatalf("no reads allowed after a failed exchange: user=%d profile=%d subs=%d",
			f.identity.getUser, f.profiles.reads(), f.subs.latest)
	}
}

func TestCallback_FragmentFailure(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	f.identity.setErr = gotrue.ErrInvalidToken

	res := f.handle(CallbackInput{AccessToken: "bad", RefreshToken: "rt", Code: "abc"})
	if res.Redirect != "/login?error=callback-hash" {
		t.Fatalf("redirect = %q", res.Redirect)
	}
	if f.identity.exchanged != 0 {
		t.Fatalf("code must not be tried after fragment failure")
	}
	if KindOf(res.Err) != KindTransportExchange || !errors.Is(res.Err, gotrue.ErrInvalidToken) {
		t.Fatalf("expected wrapped transport error, got %v", res.Err)
	}
}

func TestCallback_NoSessionOrUser(t *testing.T) {
	f := newRouterFixture(nil)
	if res := f.handle(CallbackInput{}); res.Redirect != "/login?error=nouser" {
		t.Fatalf("no transport, no cookie: redirect = %q", res.Redirect)
	}
	if res := f.handle(CallbackInput{Code: "abc"}); res.Redirect != "/login?error=nouser" || res.FailedStep != StepResolvingUser {
		t.Fatalf("unknown user: %+v", res)
	}
	if f.profiles.reads() != 0 {
		t.Fatalf("profile must not be touched without a user")
	}
}

func TestCallback_ProfileFailure(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	f.profiles.ensureErr = errors.New("db down")
	res := f.handle(CallbackInput{Code: "abc"})
	if res.Redirect != "/login?error=profile" || res.FailedStep != StepEnsuringProfile {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.subs.latest != 0 {
		t.Fatalf("entitlement must not be read after profile failure")
	}
}

func TestCallback_NotEntitledGoesToOffer(t *testing.T) {
	user := &gotrue.User{ID: uuid.New(), Email: "ada@example.com", UserMetadata: map[string]any{"preferred_username": "Ada"}}
	f := newRouterFixture(user)

	res := f.handle(CallbackInput{Code: "abc", CodeVerifier: "v"})
	if res.Redirect != "/pricing" || res.Entitled || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Session == nil || res.Session.AccessToken != "code-abc" {
		t.Fatalf("expected exchanged session, got %+v", res.Session)
	}
	if res.Username != "ada" {
		t.Fatalf("expected username ada, got %q", res.Username)
	}
	if len(f.logins.events) != 1 || f.logins.events[0].Method != "code" {
		t.Fatalf("expected one code login event, got %+v", f.logins.events)
	}
}

func TestCallback_EntitledGoesToMembers(t *testing.T) {
	user := &gotrue.User{ID: uuid.New()}
	f := newRouterFixture(user)
	end := time.Now().Add(time.Hour)
	_, _ = f.subs.UpsertSubscription(context.Background(), entitlements.SubscriptionRecord{
		UserID: user.ID, Status: "trialing", CurrentPeriodEnd: &end, StripeSubscriptionID: "sub_1",
	})

	res := f.handle(CallbackInput{AccessToken: "at", RefreshToken: "rt"})
	if res.Redirect != "/videos" || !res.Entitled {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Username != "" {
		t.Fatalf("no candidates means no username, got %q", res.Username)
	}
}

func TestCallback_FragmentThenCodeLastWins(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	res := f.handle(CallbackInput{AccessToken: "at", RefreshToken: "rt", Code: "abc"})
	if f.identity.set != 1 || f.identity.exchanged != 1 {
		t.Fatalf("both transports should run: set=%d exchanged=%d", f.identity.set, f.identity.exchanged)
	}
	if res.Session.AccessToken != "code-abc" {
		t.Fatalf("code session should win, got %q", res.Session.AccessToken)
	}
}

func TestCallback_ExistingCookieSession(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	existing := &gotrue.Session{AccessToken: "cookie"}
	res := f.handle(CallbackInput{Existing: existing})
	if res.Session != existing || res.Redirect != "/pricing" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.logins.events[0].Method != "cookie" {
		t.Fatalf("expected cookie login, got %q", f.logins.events[0].Method)
	}
}

func TestCallback_EntitlementReadErrorFailsClosed(t *testing.T) {
	user := &gotrue.User{ID: uuid.New()}
	f := newRouterFixture(user)
	f.subs.latestErr = errors.New("timeout")
	res := f.handle(CallbackInput{Code: "abc"})
	if res.Redirect != "/pricing" || res.Entitled || res.FailedStep != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCallback_UsernameFailureIsNotFatal(t *testing.T) {
	user := &gotrue.User{ID: uuid.New(), Email: "bob@example.com"}
	f := newRouterFixture(user)
	f.profiles.setErr = errors.New("db blip")
	res := f.handle(CallbackInput{Code: "abc"})
	if res.FailedStep != "" || res.Redirect != "/pricing" {
		t.Fatalf("username errors must not fail the callback: %+v", res)
	}
}

func TestCallback_KeepsExistingUsername(t *testing.T) {
	user := &gotrue.User{ID: uuid.New(), Email: "bob@example.com"}
	f := newRouterFixture(user)
	_ = f.profiles.ProfileStore.EnsureProfile(context.Background(), user.ID)
	f.profiles.ClaimUsername(user.ID, "robert")

	res := f.handle(CallbackInput{Code: "abc"})
	if res.Username != "robert" || len(f.profiles.sets) != 0 {
		t.Fatalf("existing username must be kept: %+v sets=%v", res, f.profiles.sets)
	}
}

func TestCallback_CustomDestinations(t *testing.T) {
	f := newRouterFixture(&gotrue.User{ID: uuid.New()})
	f.svc = NewService(Config{LoginPath: "/signin", OfferRedirect: "/join"}, Deps{
		Identity: f.identity, Profiles: f.profiles, Subscriptions: f.subs, Log: quietLogger(),
	})
	if res := f.handle(CallbackInput{Code: "abc"}); res.Redirect != "/join" {
		t.Fatalf("redirect = %q", res.Redirect)
	}
	f.identity.exchangeErr = errors.New("x")
	if res := f.handle(CallbackInput{Code: "abc"}); res.Redirect != "/signin?error=callback-code" {
		t.Fatalf("redirect = %q", res.Redirect)
	}
}
