package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/gallery"
	"github.com/gin-gonic/gin"
)

// HandleVideosGET lists video cards. Anonymous visitors see the same cards
// as non-members.
func HandleVideosGET(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		entitled := false
		if cl, ok := ginutil.CallerFrom(c); ok {
			entitled = env.Svc.Entitlement(c.Request.Context(), cl.UserID).Entitled
		}
		videos, err := env.Videos.ListVideos(c.Request.Context())
		if err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "failed_to_list_videos")
			return
		}
		c.JSON(http.StatusOK, gin.H{"entitled": entitled, "cards": gallery.Build(videos, entitled)})
	}
}
