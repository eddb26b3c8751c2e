package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func HandleProfilePATCH(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	type profileReq struct {
		Username    *string `json:"username"`
		DisplayName *string `json:"display_name"`
		AvatarURL   *string `json:"avatar_url"`
	}
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLProfile) {
			ginutil.TooMany(c)
			return
		}
		var req profileReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if req.Username != nil {
			// Only already-sanitized names are accepted so what the user
			// typed is exactly what is stored.
			u := strings.TrimSpace(*req.Username)
			if u == "" || core.Sanitize(u) != u {
				ginutil.BadRequest(c, "invalid_username")
				return
			}
			req.Username = &u
		}
		ctx := c.Request.Context()
		if err := env.Profiles.EnsureProfile(ctx, cl.UserID); err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "profile_failed")
			return
		}
		// Reject a name held by someone else before any field is written.
		// The unique index still decides races.
		if req.Username != nil {
			owner, err := env.Profiles.GetIDByUsername(ctx, *req.Username)
			if err != nil {
				ginutil.ServerErrWithLog(c, env.log(), err, "profile_failed")
				return
			}
			if owner != uuid.Nil && owner != cl.UserID {
				ginutil.Conflict(c, "username_taken")
				return
			}
		}
		p, err := env.Profiles.UpdateProfile(ctx, cl.UserID, identity.ProfileUpdate{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			AvatarURL:   req.AvatarURL,
		})
		switch {
		case errors.Is(err, identity.ErrUsernameTaken):
			ginutil.Conflict(c, "username_taken")
			return
		case err != nil:
			ginutil.ServerErrWithLog(c, env.log(), err, "profile_failed")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
