package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleAccountGET summarizes the caller's membership.
func HandleAccountGET(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		ent := env.Svc.Entitlement(c.Request.Context(), cl.UserID)
		out := gin.H{
			"user_id":            cl.UserID.String(),
			"email":              cl.Email,
			"entitled":           ent.Entitled,
			"status":             nil,
			"current_period_end": nil,
			"has_billing":        false,
		}
		if r := ent.Record; r != nil {
			out["status"] = r.Status
			if r.CurrentPeriodEnd != nil {
				out["current_period_end"] = r.CurrentPeriodEnd.UTC()
			}
			out["has_billing"] = r.StripeCustomerID != ""
		}
		c.JSON(http.StatusOK, out)
	}
}
