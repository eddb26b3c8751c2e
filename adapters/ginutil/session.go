package ginutil

import (
	"net/http"
	"time"

	"github.com/PaulFidika/membergate/gotrue"
	"github.com/gin-gonic/gin"
)

// Cookie names shared with the storefront.
const (
	CookieAccess  = "sb-access-token"
	CookieRefresh = "sb-refresh-token"
	CookieFlow    = "mg_flow"
	CookieAge     = "age_ok_v1"
)

const refreshCookieAge = 60 * 24 * time.Hour

// Cookies controls the attributes of every cookie the app sets.
type Cookies struct {
	Secure bool
	Domain string
}

func (ck Cookies) set(c *gin.Context, name, value string, maxAge time.Duration, httpOnly bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   ck.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   ck.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ck Cookies) clear(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   ck.Domain,
		MaxAge:   -1,
		Secure:   ck.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession writes the access and refresh cookies for s.
func (ck Cookies) SetSession(c *gin.Context, s *gotrue.Session) {
	if s == nil || s.AccessToken == "" {
		return
	}
	ttl := time.Hour
	if exp := s.Expiry(); !exp.IsZero() {
		ttl = time.Until(exp)
	}
	if ttl < time.Minute {
		ttl = time.Minute
	}
	ck.set(c, CookieAccess, s.AccessToken, ttl, true)
	if s.RefreshToken != "" {
		ck.set(c, CookieRefresh, s.RefreshToken, refreshCookieAge, true)
	}
}

// ClearSession removes both session cookies.
func (ck Cookies) ClearSession(c *gin.Context) {
	ck.clear(c, CookieAccess)
	ck.clear(c, CookieRefresh)
}

// SetFlow remembers the pending authorization flow id.
func (ck Cookies) SetFlow(c *gin.Context, id string, ttl time.Duration) {
	ck.set(c, CookieFlow, id, ttl, true)
}

func (ck Cookies) ClearFlow(c *gin.Context) { ck.clear(c, CookieFlow) }

// SetAgeConfirmed sets the one-year age gate cookie. It is readable by the
// page scripts.
func (ck Cookies) SetAgeConfirmed(c *gin.Context) {
	ck.set(c, CookieAge, "1", 365*24*time.Hour, false)
}

// SessionFromCookies returns the session carried by the request cookies, or
// nil when there is no access token.
func SessionFromCookies(c *gin.Context) *gotrue.Session {
	at, _ := c.Cookie(CookieAccess)
	if at == "" {
		return nil
	}
	rt, _ := c.Cookie(CookieRefresh)
	return &gotrue.Session{AccessToken: at, RefreshToken: rt}
}
