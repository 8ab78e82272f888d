package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/biyariq/storefront/internal/domain/session"
)

// ErrMissingToken is returned when a login or registration response carries no token
var ErrMissingToken = errors.New("gateway: auth response has no token")

type authWire struct {
	Token       string        `json:"token"`
	AccessToken string        `json:"accessToken"`
	User        *session.User `json:"user"`
}

func (w authWire) result() (session.Auth, error) {
	token := w.Token
	if token == "" {
		token = w.AccessToken
	}
	if token == "" {
		return session.Auth{}, ErrMissingToken
	}
	r := session.Auth{Token: token}
	if w.User != nil {
		r.User = *w.User
	}
	return r, nil
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.Auth, error) {
	var w authWire
	if err := c.do(ctx, http.MethodPost, "/auth/login", "/auth/login", creds, &w); err != nil {
		return session.Auth{}, err
	}
	return w.result()
}

// Register creates an account and returns its bearer token
func (c *Client) Register(ctx context.Context, reg session.Registration) (session.Auth, error) {
	var w authWire
	if err := c.do(ctx, http.MethodPost, "/auth/register", "/auth/register", reg, &w); err != nil {
		return session.Auth{}, err
	}
	return w.result()
}

// Logout ends the backend session
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", "/auth/logout", nil, nil)
}

// Profile returns the user behind the current token
func (c *Client) Profile(ctx context.Context) (session.User, error) {
	var w struct {
		session.User
		Nested *session.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/my-profile", "/auth/my-profile", nil, &w); err != nil {
		return session.User{}, err
	}
	if w.Nested != nil {
		return *w.Nested, nil
	}
	return w.User, nil
}
