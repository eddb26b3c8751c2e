package gotrue

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrInvalidToken covers malformed, unsigned or mis-addressed tokens.
	ErrInvalidToken = errors.New("gotrue: invalid token")
	// ErrTokenExpired is returned for an otherwise valid token past its exp.
	ErrTokenExpired = errors.New("gotrue: token expired")
)

// Verifier checks access tokens locally. With a JWKS URL it verifies
// asymmetric signatures against the cached key set; otherwise it falls back
// to the project's shared HS256 secret.
type Verifier struct {
	cfg  AcceptConfig
	http *http.Client
	now  func() time.Time

	mu      sync.Mutex
	keys    jwk.Set
	fetched time.Time
}

func NewVerifier(cfg AcceptConfig, hc *http.Client) *Verifier {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Verifier{cfg: cfg.defaulted(), http: hc, now: time.Now}
}

// Verify validates raw and returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*AccessClaims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	if v.cfg.JWKSURL != "" {
		return v.verifyJWKS(ctx, raw)
	}
	if v.cfg.JWTSecret != "" {
		return v.verifyHS256(raw)
	}
	return nil, errors.New("gotrue: no verification key configured")
}

func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil && v.now().Sub(v.fetched) < v.cfg.CacheTTL {
		return v.keys, nil
	}
	set, err := jwk.Fetch(ctx, v.cfg.JWKSURL, jwk.WithHTTPClient(v.http))
	if err != nil {
		// keep serving the stale set if we have one
		if v.keys != nil {
			return v.keys, nil
		}
		return nil, err
	}
	v.keys = set
	v.fetched = v.now()
	return set, nil
}

func (v *Verifier) verifyJWKS(ctx context.Context, raw string) (*AccessClaims, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithAcceptableSkew(v.cfg.Skew),
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithContext(ctx),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	tok, err := jwt.ParseString(raw, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	sub, err := uuid.Parse(tok.Subject())
	if err != nil {
		return nil, ErrInvalidToken
	}
	out := &AccessClaims{Subject: sub, ExpiresAt: tok.Expiration()}
	priv := tok.PrivateClaims()
	out.Email, _ = priv["email"].(string)
	out.SessionID, _ = priv["session_id"].(string)
	out.UserMetadata, _ = priv["user_metadata"].(map[string]any)
	return out, nil
}
