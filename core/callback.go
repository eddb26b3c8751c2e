package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/entitlements"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	"github.com/PaulFidika/membergate/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CallbackStep names a stage of the sign-in callback.
type CallbackStep string

const (
	StepExtractingCredentials CallbackStep = "extracting_credentials"
	StepExchangingSession     CallbackStep = "exchanging_session"
	StepResolvingUser         CallbackStep = "resolving_user"
	StepEnsuringProfile       CallbackStep = "ensuring_profile"
	StepAssigningUsername     CallbackStep = "assigning_username"
	StepEvaluatingEntitlement CallbackStep = "evaluating_entitlement"
	StepRedirected            CallbackStep = "redirected"
)

// Error tags appended to the login page on failure.
const (
	TagCallbackHash = "callback-hash"
	TagCallbackCode = "callback-code"
	TagNoUser       = "nouser"
	TagProfile      = "profile"
)

// CallbackInput is everything the browser delivered. Either transport may be
// empty; Existing is the session already held in cookies, if any.
type CallbackInput struct {
	Code         string
	CodeVerifier string
	AccessToken  string
	RefreshToken string
	Existing     *gotrue.Session
	IP           string
	UserAgent    string
}

// CallbackResult is where to send the browser. Session is set when the
// router established or kept one; the caller persists it.
type CallbackResult struct {
	Redirect   string
	Session    *gotrue.Session
	UserID     uuid.UUID
	Entitled   bool
	Username   string
	FailedStep CallbackStep
	ErrorTag   string
	// Err is set when a credential transport was rejected.
	Err error
}

// CallbackRouter turns a sign-in callback into a session and a redirect.
// Steps run strictly in order; a failed step performs no later reads.
type CallbackRouter struct {
	cfg       Config
	identity  IdentityBackend
	profiles  ProfileStore
	allocator *Allocator
	resolver  *entitlements.Resolver
	logins    LoginRecorder
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func (r *CallbackRouter) Handle(ctx context.Context, in CallbackInput) CallbackResult {
	start := r.now()
	res := r.handle(ctx, in)
	step := string(StepRedirected)
	if res.FailedStep != "" {
		step = string(res.FailedStep)
	}
	r.metrics.ObserveCallback(step, res.ErrorTag, r.now().Sub(start))
	return res
}

func (r *CallbackRouter) handle(ctx context.Context, in CallbackInput) CallbackResult {
	log := r.log.WithField("step", string(StepExtractingCredentials))
	sess := in.Existing

	// implicit transport first, then code; the last success wins
	if in.AccessToken != "" {
		s, err := r.identity.SetSession(ctx, in.AccessToken, in.RefreshToken)
		if err != nil {
			log.WithError(err).WithField("step", string(StepExchangingSession)).Warn("fragment session rejected")
			res := r.failed(StepExchangingSession, TagCallbackHash)
			res.Err = fail(KindTransportExchange, "set_session", err)
			return res
		}
		sess = s
	}
	if strings.TrimSpace(in.Code) != "" {
		s, err := r.identity.ExchangeCodeForSession(ctx, in.Code, in.CodeVerifier)
		if err != nil {
			log.WithError(err).WithField("step", string(StepExchangingSession)).Warn("code exchange failed")
			res := r.failed(StepExchangingSession, TagCallbackCode)
			res.Err = fail(KindTransportExchange, "exchange_code", err)
			return res
		}
		sess = s
	}

	if sess == nil || sess.AccessToken == "" {
		return r.failed(StepResolvingUser, TagNoUser)
	}
	user, err := r.identity.GetUser(ctx, sess.AccessToken)
	if err != nil || user == nil || user.ID == uuid.Nil {
		if err != nil && !errors.Is(err, gotrue.ErrNoUser) {
			log.WithError(err).WithField("step", string(StepResolvingUser)).Warn("user lookup failed")
		}
		return r.failed(StepResolvingUser, TagNoUser)
	}
	log = log.WithField("user_id", user.ID.String())

	if err := r.profiles.EnsureProfile(ctx, user.ID); err != nil {
		log.WithError(err).WithField("step", string(StepEnsuringProfile)).Error("ensure profile failed")
		return r.failed(StepEnsuringProfile, TagProfile)
	}

	res := CallbackResult{Session: sess, UserID: user.ID}
	res.Username = r.assignUsername(ctx, log, *user)

	ent, err := r.resolver.Resolve(ctx, user.ID)
	if err != nil {
		log.WithError(err).WithField("step", string(StepEvaluatingEntitlement)).Warn("entitlement read failed; treating as not entitled")
	}
	res.Entitled = ent.Entitled
	if res.Entitled {
		res.Redirect = r.cfg.MemberRedirect
	} else {
		res.Redirect = r.cfg.OfferRedirect
	}

	if r.logins != nil {
		method := "code"
		if in.AccessToken != "" && in.Code == "" {
			method = "fragment"
		} else if in.AccessToken == "" && in.Code == "" {
			method = "cookie"
		}
		r.logins.RecordLogin(ctx, LoginEvent{
			UserID:    user.ID,
			Method:    method,
			Entitled:  res.Entitled,
			IP:        in.IP,
			UserAgent: in.UserAgent,
			At:        r.now(),
		})
	}
	log.WithFields(logrus.Fields{"step": string(StepRedirected), "entitled": res.Entitled}).Info("callback routed")
	return res
}

// assignUsername fills a missing username. Failures are logged, never fatal.
func (r *CallbackRouter) assignUsername(ctx context.Context, log logrus.FieldLogger, user gotrue.User) string {
	prof, err := r.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, identity.ErrProfileNotFound) {
			log.WithError(err).WithField("step", string(StepAssigningUsername)).Warn("profile read failed; skipping username")
		}
		return ""
	}
	if prof.Username != nil && *prof.Username != "" {
		return *prof.Username
	}
	name, err := r.allocator.EnsureUsername(ctx, user.ID, UsernameCandidates(user)...)
	if err != nil {
		log.WithError(err).WithField("step", string(StepAssigningUsername)).Warn("username not assigned")
		return ""
	}
	return name
}

func (r *CallbackRouter) failed(step CallbackStep, tag string) CallbackResult {
	return CallbackResult{
		Redirect:   r.cfg.LoginPath + "?error=" + url.QueryEscape(tag),
		FailedStep: step,
		ErrorTag:   tag,
	}
}
