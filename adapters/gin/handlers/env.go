package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/gallery"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthServer is the part of the auth server the routes call directly.
type AuthServer interface {
	AuthorizeURL(p gotrue.Provider, redirectTo, challenge string) string
	LinkIdentityURL(ctx context.Context, accessToken string, p gotrue.Provider, redirectTo, challenge string) (string, error)
	SignOut(ctx context.Context, accessToken string) error
	AdminConfirmEmail(ctx context.Context, userID uuid.UUID) error
}

// Billing creates processor-hosted checkout and portal pages.
type Billing interface {
	CreateCheckoutSession(ctx context.Context, in billing.CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Profiles is the editable profile store.
type Profiles interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*identity.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd identity.ProfileUpdate) (*identity.Profile, error)
	GetIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
}

// Env carries what the route handlers share.
type Env struct {
	Svc      *core.Service
	Auth     AuthServer
	Billing  Billing
	Profiles Profiles
	Videos   gallery.Lister
	Flows    gotrue.FlowCache
	Cookies  ginutil.Cookies
	Log      logrus.FieldLogger

	SiteURL       string
	PriceID       string
	FlowTTL       time.Duration
	AdminSecret   string
	WebhookSecret string
	// Diag is the redacted configuration report served to operators.
	Diag map[string]string
}

func (e *Env) url(path string) string { return strings.TrimRight(e.SiteURL, "/") + path }

func (e *Env) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// requireCaller answers 401 when the auth middleware found no user.
func requireCaller(c *gin.Context) (ginutil.Caller, bool) {
	cl, ok := ginutil.CallerFrom(c)
	if !ok {
		ginutil.Unauthorized(c, "unauthorized")
	}
	return cl, ok
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
