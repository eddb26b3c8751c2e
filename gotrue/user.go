package gotrue

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// GetUser resolves the user behind an access token. A token the server no
// longer accepts yields ErrNoUser.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoUser
	}
	var u User
	if err := c.do(ctx, http.MethodGet, c.endpoint("/user"), accessToken, nil, &u); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
			return nil, ErrNoUser
		}
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, ErrNoUser
	}
	return &u, nil
}

// SignOut revokes the session server side.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, c.endpoint("/logout"), accessToken, nil, nil)
}

// AdminConfirmEmail marks the user's email as confirmed. Requires the
// service role key.
func (c *Client) AdminConfirmEmail(ctx context.Context, userID uuid.UUID) error {
	if strings.TrimSpace(c.serviceKey) == "" {
		return errors.New("gotrue: service role key not configured")
	}
	if userID == uuid.Nil {
		return errors.New("gotrue: user id required")
	}
	body := map[string]any{"email_confirm": true}
	return c.do(ctx, http.MethodPut, c.endpoint("/admin/users/"+userID.String()), c.serviceKey, body, nil)
}
