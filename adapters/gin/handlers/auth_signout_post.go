package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/gin-gonic/gin"
)

// HandleAuthSignoutPOST revokes the session on the auth server when it can
// and always clears the cookies.
func HandleAuthSignoutPOST(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := ginutil.CurrentSession(c); s != nil {
			if err := env.Auth.SignOut(c.Request.Context(), s.AccessToken); err != nil {
				env.log().WithError(err).Debug("remote sign-out failed")
			}
		}
		env.Cookies.ClearSession(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
