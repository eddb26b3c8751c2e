package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoginEvent is one completed sign-in callback.
type LoginEvent struct {
	UserID    uuid.UUID
	Method    string // "code" | "fragment" | "cookie"
	Entitled  bool
	IP        string
	UserAgent string
	At        time.Time
}

// LoginRecorder records sign-ins to an external sink.
// Implementations should be non-blocking and best-effort.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, ev LoginEvent)
}

// LogLoginRecorder writes sign-ins to a logrus logger.
type LogLoginRecorder struct {
	Log logrus.FieldLogger
}

func (l LogLoginRecorder) RecordLogin(_ context.Context, ev LoginEvent) {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"event":      "login",
		"user_id":    ev.UserID.String(),
		"method":     ev.Method,
		"entitled":   ev.Entitled,
		"ip":         ev.IP,
		"user_agent": ev.UserAgent,
	}).Info("user signed in")
}
