package authgin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/adapters/ginutil"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenVerifier checks access tokens locally.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*gotrue.AccessClaims, error)
}

// SessionRefresher rotates a refresh token into a new session.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*gotrue.Session, error)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the caller from a bearer header or the session
// cookies. An expired cookie session is refreshed and the new cookies set.
func (s *Service) authenticate(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := bearerToken(c); raw != "" {
		if cl, err := s.verifier.Verify(ctx, raw); err == nil {
			ginutil.SetCaller(c, ginutil.Caller{UserID: cl.Subject, Email: cl.Email, AccessToken: raw, Claims: cl})
		}
		return
	}
	sess := ginutil.SessionFromCookies(c)
	rt, _ := c.Cookie(ginutil.CookieRefresh)
	if sess != nil {
		cl, err := s.verifier.Verify(ctx, sess.AccessToken)
		if err == nil {
			ginutil.SetCaller(c, ginutil.Caller{UserID: cl.Subject, Email: cl.Email, AccessToken: sess.AccessToken, RefreshToken: rt, Claims: cl})
			return
		}
		if !errors.Is(err, gotrue.ErrTokenExpired) {
			return
		}
	}
	if rt == "" || s.refresher == nil {
		return
	}
	fresh, err := s.refresher.RefreshSession(ctx, rt)
	if err != nil {
		s.log.WithError(err).Debug("session refresh failed")
		s.env.Cookies.ClearSession(c)
		return
	}
	cl, err := s.verifier.Verify(ctx, fresh.AccessToken)
	if err != nil {
		return
	}
	s.env.Cookies.SetSession(c, fresh)
	ginutil.SetCaller(c, ginutil.Caller{UserID: cl.Subject, Email: cl.Email, AccessToken: fresh.AccessToken, RefreshToken: fresh.RefreshToken, Claims: cl})
}

// AuthOptional resolves the caller when possible and always continues.
func (s *Service) AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.authenticate(c)
		c.Next()
	}
}

// AuthRequired answers 401 when no caller can be resolved.
func (s *Service) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.authenticate(c)
		if _, ok := ginutil.CallerFrom(c); !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := logrus.Fields{
			"method":  c.Request.Method,
			"route":   c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if cl, ok := ginutil.CallerFrom(c); ok {
			fields["user_id"] = cl.UserID.String()
		}
		entry := log.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request")
		case c.Writer.Status() >= 400:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
	}
}
