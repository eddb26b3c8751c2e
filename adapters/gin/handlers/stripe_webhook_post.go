package handlers

import (
	"io"
	"net/http"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/core"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxWebhookBody is well above the largest event payloads Stripe sends.
const maxWebhookBody = 512 << 10

// HandleStripeWebhookPOST verifies and routes processor events. Work is
// queued when a job queue is configured. Failures that a retry could fix
// return 500 so the processor redelivers.
func HandleStripeWebhookPOST(env *Env, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWebhook) {
			ginutil.TooMany(c)
			return
		}
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if len(payload) > maxWebhookBody {
			ginutil.TooLarge(c)
			return
		}
		ev, err := billing.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), env.WebhookSecret)
		if err != nil {
			env.log().WithError(err).Warn("rejected webhook")
			ginutil.BadRequest(c, "invalid_signature")
			return
		}
		log := env.log().WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})
		enq := env.Svc.Enqueuer()
		switch {
		case ev.IsCheckoutCompleted() && ev.ObjectID != "":
			err = enq.EnqueueCheckoutReconcile(c.Request.Context(), ev.ObjectID)
		case ev.IsSubscriptionChange() && ev.ObjectID != "":
			err = enq.EnqueueSubscriptionSync(c.Request.Context(), ev.ObjectID)
		default:
			log.Debug("ignored webhook event")
		}
		if err != nil {
			if ginutil.StatusForKind(core.KindOf(err)) >= http.StatusInternalServerError {
				ginutil.ServerErrWithLog(c, log, err, "enqueue_failed")
				return
			}
			// redelivery cannot fix client-side kinds
			log.WithError(err).Warn("webhook event not linkable")
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
