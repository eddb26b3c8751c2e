package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleAuthSigninGET starts a provider sign-in with PKCE and redirects to
// the auth server.
func HandleAuthSigninGET(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSignin) {
			ginutil.TooMany(c)
			return
		}
		p, ok := gotrue.DefaultsFor(c.Param("provider"))
		if !ok {
			ginutil.NotFound(c, "unknown_provider")
			return
		}
		pkce, ok := startFlow(c, env, p, "signin")
		if !ok {
			return
		}
		c.Redirect(http.StatusFound, env.Auth.AuthorizeURL(p, env.url("/auth/callback"), pkce.Challenge))
	}
}

// startFlow stores a fresh verifier under a new flow id and sets the flow
// cookie. It answers 500 itself on failure.
func startFlow(c *gin.Context, env *Env, p gotrue.Provider, mode string) (gotrue.PKCE, bool) {
	pkce := gotrue.NewPKCE()
	id := uuid.NewString()
	st := gotrue.FlowState{Verifier: pkce.Verifier, Provider: p.Name, Mode: mode}
	if err := env.Flows.Put(c.Request.Context(), id, st); err != nil {
		ginutil.ServerErrWithLog(c, env.log(), err, "flow_store_failed")
		return gotrue.PKCE{}, false
	}
	env.Cookies.SetFlow(c, id, env.FlowTTL)
	return pkce, true
}
