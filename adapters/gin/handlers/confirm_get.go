package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/core"
	"github.com/gin-gonic/gin"
)

// HandleConfirmGET handles GET /confirm?session_id=... after checkout.
// It is safe to call any number of times for the same session.
func HandleConfirmGET(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLConfirm) {
			ginutil.TooMany(c)
			return
		}
		res, err := env.Svc.Reconcile.Reconcile(c.Request.Context(), c.Query("session_id"))
		if err != nil {
			code := "reconcile_failed"
			switch core.KindOf(err) {
			case core.KindInvalidInput:
				code = "missing_session_id"
			case core.KindMissingLinkage:
				code = "missing_subscription_or_user"
			}
			ginutil.AbortKind(c, err, code)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": res.Status})
	}
}
