package gotrue

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Provider is an external identity provider enabled on the auth server.
type Provider struct {
	Name   string
	Scopes []string
}

// DefaultsFor returns the sign-in defaults for a known provider name.
func DefaultsFor(name string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "twitter":
		return Provider{Name: "twitter"}, true
	case "google":
		return Provider{Name: "google", Scopes: []string{"email", "profile"}}, true
	case "discord":
		return Provider{Name: "discord", Scopes: []string{"identify", "email"}}, true
	case "github":
		return Provider{Name: "github", Scopes: []string{"read:user", "user:email"}}, true
	default:
		return Provider{}, false
	}
}

// PKCE is a verifier and its S256 challenge for one authorization flow.
type PKCE struct {
	Verifier  string
	Challenge string
}

func NewPKCE() PKCE {
	v := oauth2.GenerateVerifier()
	return PKCE{Verifier: v, Challenge: oauth2.S256ChallengeFromVerifier(v)}
}

func (c *Client) authorizeQuery(p Provider, redirectTo, challenge string) url.Values {
	q := url.Values{}
	q.Set("provider", p.Name)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if len(p.Scopes) > 0 {
		q.Set("scopes", strings.Join(p.Scopes, " "))
	}
	if challenge != "" {
		q.Set("code_challenge", challenge)
		q.Set("code_challenge_method", "s256")
	}
	return q
}

// AuthorizeURL is where the browser goes to start a provider sign-in.
func (c *Client) AuthorizeURL(p Provider, redirectTo, challenge string) string {
	return c.endpoint("/authorize") + "?" + c.authorizeQuery(p, redirectTo, challenge).Encode()
}

// LinkIdentityURL asks the auth server for the URL that links another
// provider identity to the signed-in user.
func (c *Client) LinkIdentityURL(ctx context.Context, accessToken string, p Provider, redirectTo, challenge string) (string, error) {
	if accessToken == "" {
		return "", ErrNoUser
	}
	q := c.authorizeQuery(p, redirectTo, challenge)
	q.Set("skip_http_redirect", "true")
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/user/identities/authorize")+"?"+q.Encode(), accessToken, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("gotrue: link response without url")
	}
	return out.URL, nil
}
