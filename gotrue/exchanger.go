package gotrue

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type pkceGrant struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCodeForSession trades a PKCE authorization code for a session.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("gotrue: empty code")
	}
	var s Session
	err := c.do(ctx, http.MethodPost, c.endpoint("/token?grant_type=pkce"), "",
		pkceGrant{AuthCode: code, CodeVerifier: verifier}, &s)
	if err != nil {
		return nil, err
	}
	return c.stamp(&s)
}

// RefreshSession rotates a refresh token into a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("gotrue: empty refresh token")
	}
	var s Session
	err := c.do(ctx, http.MethodPost, c.endpoint("/token?grant_type=refresh_token"), "",
		refreshGrant{RefreshToken: refreshToken}, &s)
	if err != nil {
		return nil, err
	}
	out, err := c.stamp(&s)
	if err != nil {
		return nil, err
	}
	out.Refreshed = true
	return out, nil
}

// SetSession adopts tokens delivered out of band (URL fragment or cookies).
// A valid access token is kept as is; an expired one is refreshed.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := c.verifier.Verify(ctx, accessToken)
	switch {
	case err == nil:
		return &Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			ExpiresAt:    claims.ExpiresAt.Unix(),
			issuedAt:     c.now(),
		}, nil
	case errors.Is(err, ErrTokenExpired) && refreshToken != "":
		return c.RefreshSession(ctx, refreshToken)
	default:
		return nil, err
	}
}

func (c *Client) stamp(s *Session) (*Session, error) {
	if s.AccessToken == "" {
		return nil, errors.New("gotrue: token response without access_token")
	}
	s.issuedAt = c.now()
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = s.issuedAt.Unix() + s.ExpiresIn
	}
	return s, nil
}
