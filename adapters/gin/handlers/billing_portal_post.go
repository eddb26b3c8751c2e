package handlers

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/gin-gonic/gin"
)

// HandleBillingPortalPOST opens the processor's billing portal for the
// customer on the caller's current subscription.
func HandleBillingPortalPOST(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLPortal) {
			ginutil.TooMany(c)
			return
		}
		ent := env.Svc.Entitlement(c.Request.Context(), cl.UserID)
		if ent.Record == nil || ent.Record.StripeCustomerID == "" {
			ginutil.NotFound(c, "no_billing_record")
			return
		}
		if !ent.Entitled {
			ginutil.Forbidden(c, "not_entitled")
			return
		}
		url, err := env.Billing.CreatePortalSession(c.Request.Context(), ent.Record.StripeCustomerID, env.url("/account"))
		if err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "portal_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
