package gotrue_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PaulFidika/membergate/authtest"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/google/uuid"
)

func newClient(t *testing.T, srv *authtest.Server) *gotrue.Client {
	t.Helper()
	c, err := gotrue.NewClient(srv.Config())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestExchangeCodeForSession(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{Email: "ada@example.com"})
	pkce := gotrue.NewPKCE()
	code := srv.IssueCode(u.ID, pkce.Verifier)

	sess, err := c.ExchangeCodeForSession(context.Background(), code, pkce.Verifier)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", sess)
	}
	if sess.Expiry().Before(time.Now()) {
		t.Fatalf("expiry in the past: %v", sess.Expiry())
	}
	claims, err := c.Verifier().Verify(context.Background(), sess.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != u.ID || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// codes are single use
	if _, err := c.ExchangeCodeForSession(context.Background(), code, pkce.Verifier); err == nil {
		t.Fatalf("expected reused code to fail")
	}
}

func TestExchangeCodeForSession_WrongVerifier(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{Email: "a@b.c"})
	code := srv.IssueCode(u.ID, "right")

	_, err := c.ExchangeCodeForSession(context.Background(), code, "wrong")
	var apiErr *gotrue.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "bad_code_verifier" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestSetSession(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{Email: "a@b.c"})
	ctx := context.Background()

	access := srv.CreateToken(u.ID, u.Email, time.Hour)
	sess, err := c.SetSession(ctx, access, "rt")
	if err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if sess.AccessToken != access || sess.Refreshed {
		t.Fatalf("expected the given token to be adopted: %+v", sess)
	}

	expired := srv.CreateExpiredToken(u.ID, u.Email)
	rt := srv.NewRefreshToken(u.ID)
	sess, err = c.SetSession(ctx, expired, rt)
	if err != nil {
		t.Fatalf("SetSession expired: %v", err)
	}
	if !sess.Refreshed || sess.AccessToken == expired {
		t.Fatalf("expected a refreshed session: %+v", sess)
	}

	if _, err := c.SetSession(ctx, expired, ""); !errors.Is(err, gotrue.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired without refresh token, got %v", err)
	}
	if _, err := c.SetSession(ctx, "garbage", "rt"); !errors.Is(err, gotrue.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetUserAndSignOut(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{
		Email:        "a@b.c",
		UserMetadata: map[string]any{"preferred_username": "Ada"},
	})
	ctx := context.Background()
	access := srv.CreateToken(u.ID, u.Email, time.Hour)

	got, err := c.GetUser(ctx, access)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ID != u.ID || got.UserMetadata["preferred_username"] != "Ada" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := c.SignOut(ctx, access); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := c.GetUser(ctx, access); !errors.Is(err, gotrue.ErrNoUser) {
		t.Fatalf("expected ErrNoUser after sign out, got %v", err)
	}
	if _, err := c.GetUser(ctx, ""); !errors.Is(err, gotrue.ErrNoUser) {
		t.Fatalf("expected ErrNoUser for empty token, got %v", err)
	}
}

func TestAdminConfirmEmail(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{Email: "a@b.c"})

	if err := c.AdminConfirmEmail(context.Background(), u.ID); err != nil {
		t.Fatalf("AdminConfirmEmail: %v", err)
	}
	if !srv.Confirmed(u.ID) {
		t.Fatalf("expected user to be confirmed")
	}
	if err := c.AdminConfirmEmail(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected unknown user to fail")
	}

	cfg := srv.Config()
	cfg.ServiceRoleKey = ""
	anon, _ := gotrue.NewClient(cfg)
	if err := anon.AdminConfirmEmail(context.Background(), u.ID); err == nil {
		t.Fatalf("expected missing service key to fail")
	}
}

func TestAuthorizeURL(t *testing.T) {
	c, err := gotrue.NewClient(gotrue.Config{URL: "https://proj.supabase.co/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	p, ok := gotrue.DefaultsFor("Discord")
	if !ok {
		t.Fatalf("expected discord defaults")
	}
	pkce := gotrue.NewPKCE()
	raw := c.AuthorizeURL(p, "https://app.test/auth/callback", pkce.Challenge)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "proj.supabase.co" || u.Path != "/auth/v1/authorize" {
		t.Fatalf("unexpected url %s", raw)
	}
	q := u.Query()
	if q.Get("provider") != "discord" || q.Get("scopes") != "identify email" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("code_challenge") != pkce.Challenge || q.Get("code_challenge_method") != "s256" {
		t.Fatalf("missing pkce params: %v", q)
	}
	if _, ok := gotrue.DefaultsFor("myspace"); ok {
		t.Fatalf("unexpected defaults for unknown provider")
	}
}

func TestLinkIdentityURL(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	u := srv.AddUser(gotrue.User{Email: "a@b.c"})
	p, _ := gotrue.DefaultsFor("twitter")

	link, err := c.LinkIdentityURL(context.Background(), srv.CreateToken(u.ID, u.Email, time.Hour), p, "https://app.test/auth/callback", "ch")
	if err != nil {
		t.Fatalf("LinkIdentityURL: %v", err)
	}
	if !strings.HasPrefix(link, "https://twitter.example.test/") {
		t.Fatalf("unexpected link url %s", link)
	}
	if _, err := c.LinkIdentityURL(context.Background(), "", p, "", ""); !errors.Is(err, gotrue.ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
}

func TestAPIErrorShapes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`))
	}))
	defer ts.Close()
	c, _ := gotrue.NewClient(gotrue.Config{URL: ts.URL})
	_, err := c.RefreshSession(context.Background(), "rt")
	var apiErr *gotrue.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "invalid_grant" || apiErr.Message != "Invalid Refresh Token" {
		t.Fatalf("unexpected error fields: %+v", apiErr)
	}
}
