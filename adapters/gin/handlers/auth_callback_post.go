package handlers

import (
	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/core"
	"github.com/gin-gonic/gin"
)

// HandleAuthCallbackPOST receives the tokens the callback shim lifted from
// the URL fragment.
func HandleAuthCallbackPOST(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCallback) {
			ginutil.TooMany(c)
			return
		}
		in := core.CallbackInput{
			AccessToken:  c.PostForm("access_token"),
			RefreshToken: c.PostForm("refresh_token"),
			Existing:     ginutil.CurrentSession(c),
		}
		finishCallback(c, env, in)
	}
}
