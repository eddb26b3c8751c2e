package ginutil

import (
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const callerKey = "membergate.caller"

// Caller is the signed-in user behind a request.
type Caller struct {
	UserID      uuid.UUID
	Email       string
	AccessToken  string
	RefreshToken string
	Claims       *gotrue.AccessClaims
}

func SetCaller(c *gin.Context, cl Caller) { c.Set(callerKey, cl) }

// CallerFrom returns the caller set by the auth middleware.
func CallerFrom(c *gin.Context) (Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return Caller{}, false
	}
	cl, ok := v.(Caller)
	return cl, ok && cl.UserID != uuid.Nil
}

// CurrentSession prefers the tokens the middleware validated, which may have
// just been refreshed, over the raw request cookies.
func CurrentSession(c *gin.Context) *gotrue.Session {
	if cl, ok := CallerFrom(c); ok && cl.AccessToken != "" {
		return &gotrue.Session{AccessToken: cl.AccessToken, RefreshToken: cl.RefreshToken}
	}
	return SessionFromCookies(c)
}
