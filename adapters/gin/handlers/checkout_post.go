package handlers

import (
	"net/http"
	"strings"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/billing"
	"github.com/gin-gonic/gin"
)

func HandleCheckoutPOST(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	type checkoutReq struct {
		PriceID string `json:"price_id"`
	}
	return func(c *gin.Context) {
		cl, ok := requireCaller(c)
		if !ok {
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheckout) {
			ginutil.TooMany(c)
			return
		}
		var req checkoutReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				ginutil.BadRequest(c, "invalid_request")
				return
			}
		}
		price := strings.TrimSpace(req.PriceID)
		if price == "" {
			price = env.PriceID
		}
		if price == "" {
			ginutil.BadRequest(c, "missing_price_id")
			return
		}
		url, err := env.Billing.CreateCheckoutSession(c.Request.Context(), billing.CheckoutParams{
			UserID:     cl.UserID.String(),
			Email:      cl.Email,
			PriceID:    price,
			SuccessURL: env.url("/account?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:  env.url("/pricing"),
		})
		if err != nil {
			ginutil.ServerErrWithLog(c, env.log(), err, "checkout_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
