package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/password"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleAdminConfirmPOST force-confirms a user's email. Callers present the
// operator secret as a bearer token.
func HandleAdminConfirmPOST(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	type confirmReq struct {
		UserID string `json:"user_id"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		if !password.MatchSecret(env.AdminSecret, bearer(c)) {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		var req confirmReq
		_ = c.ShouldBindJSON(&req)
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			ginutil.BadRequest(c, "missing_user_id")
			return
		}
		if err := env.Auth.AdminConfirmEmail(c.Request.Context(), id); err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "confirm_failed")
			return
		}
		env.log().WithField("user_id", id.String()).Info("email force-confirmed")
		c.JSON(http.StatusOK, gin.H{"ok": true, "user_id": id.String()})
	}
}
