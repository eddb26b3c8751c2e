package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/gin-gonic/gin"
)

// HandleAuthLinkGET links another provider identity to the signed-in user.
func HandleAuthLinkGET(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLSignin) {
			ginutil.TooMany(c)
			return
		}
		p, ok := gotrue.DefaultsFor(c.Param("provider"))
		if !ok {
			ginutil.NotFound(c, "unknown_provider")
			return
		}
		pkce, ok := startFlow(c, env, p, "link")
		if !ok {
			return
		}
		target, err := env.Auth.LinkIdentityURL(c.Request.Context(), cl.AccessToken, p, env.url("/auth/callback"), pkce.Challenge)
		if err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "link_failed")
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}
