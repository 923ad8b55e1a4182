package api

import (
	"context"
	"fmt"

	"github.com/shopcrm/crm-console/internal/model"
)

// LoginRequest is the credential payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the payload returned by a successful login.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for a bearer token and the user record.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.Post(ctx, "/api/auth/login", LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the current user record for the stored token, including
// the active shop context when one is set server-side.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Get(ctx, "/api/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SwitchShop asks the server to change the active shop context. The
// server is authoritative; callers must re-fetch Me afterward to pick
// up the new context.
func (c *Client) SwitchShop(ctx context.Context, shopID int) error {
	path := fmt.Sprintf("/api/auth/switch-shop/%d", shopID)
	return c.Post(ctx, path, struct{}{}, nil)
}
