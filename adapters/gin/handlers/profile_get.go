package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/gin-gonic/gin"
)

// HandleProfileGET returns the caller's profile, creating the row on first use.
func HandleProfileGET(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if err := env.Profiles.EnsureProfile(ctx, cl.UserID); err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "profile_failed")
			return
		}
		p, err := env.Profiles.GetProfile(ctx, cl.UserID)
		if err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "profile_failed")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
