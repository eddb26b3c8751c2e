// Package ginutil holds the small helpers shared by the gin handlers:
// JSON error responses, rate-limit checks, session cookies and the caller
// stored on the request context.
package ginutil

import (
	"net/http"

	"github.com/PaulFidika/membergate/core"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func BadRequest(c *gin.Context, code string)   { abort(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { abort(c, http.StatusUnauthorized, code) }
func Forbidden(c *gin.Context, code string)    { abort(c, http.StatusForbidden, code) }
func NotFound(c *gin.Context, code string)     { abort(c, http.StatusNotFound, code) }
func Conflict(c *gin.Context, code string)     { abort(c, http.StatusConflict, code) }
func ServerErr(c *gin.Context, code string)    { abort(c, http.StatusInternalServerError, code) }

func TooMany(c *gin.Context)  { abort(c, http.StatusTooManyRequests, "rate_limited") }
func TooLarge(c *gin.Context) { abort(c, http.StatusRequestEntityTooLarge, "payload_too_large") }

// ServerErrWithLog logs err with the route and answers 500 with code.
func ServerErrWithLog(c *gin.Context, log logrus.FieldLogger, err error, code string) {
	if log != nil && err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"route":  c.FullPath(),
			"method": c.Request.Method,
		}).Error(code)
	}
	ServerErr(c, code)
}

// AbortKind answers with the status StatusForKind picks for err and the
// given error code.
func AbortKind(c *gin.Context, err error, code string) {
	abort(c, StatusForKind(core.KindOf(err)), code)
}

// StatusForKind maps a core error kind to the HTTP status the routes use.
func StatusForKind(k core.Kind) int {
	switch k {
	case core.KindInvalidInput, core.KindMissingLinkage:
		return http.StatusBadRequest
	case core.KindTransportExchange:
		return http.StatusUnauthorized
	case core.KindUniquenessConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
