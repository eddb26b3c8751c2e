// Package authgin mounts the membership routes on a gin router.
package authgin

import (
	"net/http"

	"github.com/PaulFidika/membergate/adapters/gin/handlers"
	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Options wires the HTTP layer. Gatherer is optional; when set /metrics is
// served from it.
type Options struct {
	Env       *handlers.Env
	Verifier  TokenVerifier
	Refresher SessionRefresher
	Limiter   ginutil.RateLimiter
	Gatherer  prometheus.Gatherer
	Log       logrus.FieldLogger
}

type Service struct {
	env       *handlers.Env
	verifier  TokenVerifier
	refresher SessionRefresher
	rl        ginutil.RateLimiter
	gatherer  prometheus.Gatherer
	log       logrus.FieldLogger
}

func NewService(o Options) *Service {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if o.Env.Log == nil {
		o.Env.Log = log
	}
	return &Service{
		env:       o.Env,
		verifier:  o.Verifier,
		refresher: o.Refresher,
		rl:        o.Limiter,
		gatherer:  o.Gatherer,
		log:       log,
	}
}

// Engine returns a gin engine with recovery, request logging and all
// routes registered.
func (s *Service) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.log))
	s.GinRegisterAPI(r)
	return r
}

// GinRegisterAPI mounts every route on r.
func (s *Service) GinRegisterAPI(r gin.IRouter) {
	env, rl := s.env, s.rl
	opt, req := s.AuthOptional(), s.AuthRequired()

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	confirm := handlers.HandleConfirmGET(env, rl)
	r.GET("/confirm", opt, confirm)

	auth := r.Group("/auth")
	auth.GET("/callback", opt, handlers.HandleAuthCallbackGET(env, rl))
	auth.POST("/callback", opt, handlers.HandleAuthCallbackPOST(env, rl))
	auth.GET("/signin/:provider", handlers.HandleAuthSigninGET(env, rl))
	auth.GET("/link/:provider", req, handlers.HandleAuthLinkGET(env, rl))
	auth.POST("/signout", opt, handlers.HandleAuthSignoutPOST(env))

	api := r.Group("/api")
	api.GET("/stripe/confirm", opt, confirm)
	api.POST("/stripe/webhook", handlers.HandleStripeWebhookPOST(env, rl))
	api.POST("/checkout", req, handlers.HandleCheckoutPOST(env, rl))
	api.POST("/billing/portal", req, handlers.HandleBillingPortalPOST(env, rl))
	api.GET("/account", req, handlers.HandleAccountGET(env))
	api.GET("/me", req, HandleMeGET(env))
	api.GET("/videos", opt, handlers.HandleVideosGET(env))
	api.GET("/profile", req, handlers.HandleProfileGET(env))
	api.PATCH("/profile", req, handlers.HandleProfilePATCH(env, rl))
	api.POST("/admin/confirm", handlers.HandleAdminConfirmPOST(env, rl))
	api.POST("/age/confirm", handlers.HandleAgeConfirmPOST(env))
	api.GET("/diag", handlers.HandleDiagGET(env, rl))
}
