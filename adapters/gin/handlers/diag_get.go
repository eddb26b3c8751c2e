package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/password"
	"github.com/gin-gonic/gin"
)

// HandleDiagGET reports which settings are present, with secrets redacted.
func HandleDiagGET(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		if !password.MatchSecret(env.AdminSecret, bearer(c)) {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		c.JSON(http.StatusOK, env.Diag)
	}
}
