package authgin

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/gin/handlers"
	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/gin-gonic/gin"
)

// UserView is a unified view of the caller.
//
// Fields with * may be empty if unavailable without a profile lookup.
type UserView struct {
	// Identity
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`

	// Access
	Entitled bool `json:"entitled"`

	// Meta
	Source string `json:"source"` // "claims" | "none"
}

// CurrentUser returns the caller as seen by the auth middleware.
func CurrentUser(c *gin.Context) (UserView, bool) {
	if cl, ok := ginutil.CallerFrom(c); ok {
		return UserView{
			UserID: cl.UserID.String(),
			Email:  cl.Email,
			Source: "claims",
		}, true
	}
	return UserView{Source: "none"}, false
}

// HandleMeGET fills the view with the profile username and entitlement.
func HandleMeGET(env *handlers.Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := CurrentUser(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		cl, _ := ginutil.CallerFrom(c)
		ctx := c.Request.Context()
		if p, err := env.Profiles.GetProfile(ctx, cl.UserID); err == nil {
			v.Username = p.Username
		}
		v.Entitled = env.Svc.Entitlement(ctx, cl.UserID).Entitled
		c.JSON(http.StatusOK, v)
	}
}

