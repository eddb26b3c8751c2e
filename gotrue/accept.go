package gotrue

import "time"

// AcceptConfig configures local verification of access tokens issued by the
// auth server. JWKSURL selects asymmetric verification; otherwise the shared
// JWTSecret is used with HS256.
type AcceptConfig struct {
	Issuer    string
	Audience  string // "authenticated" for signed-in users
	JWTSecret string
	JWKSURL   string
	Skew      time.Duration
	CacheTTL  time.Duration // JWKS refresh interval
}

func (c AcceptConfig) defaulted() AcceptConfig {
	if c.Audience == "" {
		c.Audience = "authenticated"
	}
	if c.Skew <= 0 {
		c.Skew = 30 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}
