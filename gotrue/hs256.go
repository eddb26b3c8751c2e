package gotrue

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func (v *Verifier) verifyHS256(raw string) (*AccessClaims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithAudience(v.cfg.Audience),
		gojwt.WithLeeway(v.cfg.Skew),
		gojwt.WithTimeFunc(v.now),
		gojwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(v.cfg.Issuer))
	}
	claims := gojwt.MapClaims{}
	_, err := gojwt.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) {
		return []byte(v.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	subject, _ := claims.GetSubject()
	sub, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	out := &AccessClaims{Subject: sub}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.Email, _ = claims["email"].(string)
	out.SessionID, _ = claims["session_id"].(string)
	out.UserMetadata, _ = claims["user_metadata"].(map[string]any)
	return out, nil
}

// SignHS256 mints an access token with the shared secret. Used by tests and
// local tooling that stand in for the auth server.
func SignHS256(secret string, sub uuid.UUID, email, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.MapClaims{
		"sub":   sub.String(),
		"email": email,
		"aud":   "authenticated",
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
