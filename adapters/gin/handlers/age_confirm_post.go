package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HandleAgeConfirmPOST(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		env.Cookies.SetAgeConfirmed(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
