package api

import (
	"context"
	"net/http"
	"strings"

	"bilancio/internal/core"
)

// Login authenticates with the backend. The returned cookies identify the
// backend session and must be passed to WithCookies for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (core.User, []*http.Cookie, error) {
	env, err := c.send(ctx, "login", http.MethodPost, PathUserLogin, map[string]any{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return core.User{}, nil, err
	}
	user, err := decode[core.User]("login", env)
	if err != nil {
		return core.User{}, nil, err
	}
	return user, env.Cookies, nil
}

// Register creates a new backend user and logs it in.
func (c *Client) Register(ctx context.Context, reg core.Registration) (core.User, []*http.Cookie, error) {
	if err := reg.Validate(); err != nil {
		return core.User{}, nil, err
	}
	env, err := c.send(ctx, "register", http.MethodPost, PathUserRegister, map[string]any{
		"name":     strings.TrimSpace(reg.Name),
		"email":    strings.TrimSpace(reg.Email),
		"password": reg.Password,
	})
	if err != nil {
		return core.User{}, nil, err
	}
	user, err := decode[core.User]("register", env)
	if err != nil {
		return core.User{}, nil, err
	}
	return user, env.Cookies, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, "logout", http.MethodPost, PathUserLogout, nil)
	return err
}

// CurrentUser returns the user of the backend session.
func (c *Client) CurrentUser(ctx context.Context) (core.User, error) {
	env, err := c.send(ctx, "current user", http.MethodGet, PathUserCurrent, nil)
	if err != nil {
		return core.User{}, err
	}
	return decode[core.User]("current user", env)
}
