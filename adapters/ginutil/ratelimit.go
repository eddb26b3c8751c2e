package ginutil

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Rate limit buckets, one per route family.
const (
	RLConfirm  = "confirm"
	RLCheckout = "checkout"
	RLCallback = "callback"
	RLSignin   = "signin"
	RLAdmin    = "admin"
	RLPortal   = "portal"
	RLProfile  = "profile"
	RLWebhook  = "webhook"
)

// RateLimiter is implemented by ratelimit/redis and ratelimit/memory.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

// AllowNamed checks bucket keyed by the caller's user id when signed in,
// else by client IP. A nil limiter allows everything. Limiter errors fail
// open so a Redis outage does not take the site down.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.ClientIP()
	if cl, ok := CallerFrom(c); ok {
		key = "u:" + cl.UserID.String()
	}
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, key)
	if err != nil {
		return true
	}
	return ok
}
