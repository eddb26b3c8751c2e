package gotrue

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record returned by GET /user.
type User struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	Identities   []Identity     `json:"identities"`
}

// Identity is one linked provider identity.
type Identity struct {
	ID           string         `json:"id"`
	Provider     string         `json:"provider"`
	IdentityData map[string]any `json:"identity_data"`
}

// Session is an access/refresh token pair for one signed-in user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
	Refreshed    bool      `json:"-"`
	issuedAt     time.Time
}

// Expiry returns when the access token stops being valid.
func (s *Session) Expiry() time.Time {
	if s == nil {
		return time.Time{}
	}
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	if s.ExpiresIn > 0 && !s.issuedAt.IsZero() {
		return s.issuedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// AccessClaims are the fields read from a verified access token.
type AccessClaims struct {
	Subject      uuid.UUID
	Email        string
	SessionID    string
	ExpiresAt    time.Time
	UserMetadata map[string]any
}
