package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoUser is returned when the access token does not resolve to a user.
var ErrNoUser = errors.New("gotrue: no user")

// Config holds the auth server endpoint and keys.
type Config struct {
	URL            string // project URL, e.g. https://xyz.supabase.co
	AnonKey        string
	ServiceRoleKey string // admin endpoints only
	Accept         AcceptConfig
	HTTPClient     *http.Client
}

// Client is an explicitly constructed handle to the auth server. It is safe
// for concurrent use.
type Client struct {
	base       string
	anonKey    string
	serviceKey string
	http       *http.Client
	verifier   *Verifier
	now        func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("gotrue: url is empty")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	accept := cfg.Accept
	if accept.Issuer == "" {
		accept.Issuer = base + "/auth/v1"
	}
	return &Client{
		base:       base,
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceRoleKey,
		http:       hc,
		verifier:   NewVerifier(accept, hc),
		now:        time.Now,
	}, nil
}

// Verifier returns the access token verifier bound to this client.
func (c *Client) Verifier() *Verifier { return c.verifier }

func (c *Client) endpoint(path string) string { return c.base + "/auth/v1" + path }

// APIError is a non-2xx response from the auth server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	out := &APIError{Status: resp.StatusCode}
	var eb errorBody
	if json.Unmarshal(b, &eb) == nil {
		out.Code = firstNonEmpty(eb.ErrorCode, eb.Error)
		out.Message = firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription)
	}
	if out.Message == "" {
		out.Message = strings.TrimSpace(string(b))
	}
	if out.Message == "" {
		out.Message = resp.Status
	}
	return out
}

// do sends a JSON request. bearer is the user access token or the service key.
func (c *Client) do(ctx context.Context, method, url, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
