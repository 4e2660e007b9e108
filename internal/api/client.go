// Package api exposes the accounting backend as typed operations.
//
// Every call goes through request.Client; failures are the request
// package's *Error wrapped with the operation name, so callers can use
// errors.Is(err, request.ErrApplication) and friends.
package api

import (
	"context"
	"fmt"
	"net/http"

	"bilancio/internal/request"
)

// Backend paths.
const (
	PathAccount      = "/account"
	PathTransaction  = "/transaction"
	PathUserLogin    = "/user/login"
	PathUserRegister = "/user/register"
	PathUserLogout   = "/user/logout"
	PathUserCurrent  = "/user/current"
)

// Sender is the subset of request.Client used here.
type Sender interface {
	Send(ctx context.Context, opts request.Options) (*request.Envelope, error)
}

// Client performs backend operations on behalf of one browser session,
// identified by the backend cookies it carries.
type Client struct {
	sender  Sender
	cookies []*http.Cookie
}

// New creates an anonymous Client.
func New(sender Sender) *Client {
	return &Client{sender: sender}
}

// WithCookies returns a copy of c that authenticates with cookies.
func (c *Client) WithCookies(cookies []*http.Cookie) *Client {
	return &Client{sender: c.sender, cookies: cookies}
}

func (c *Client) send(ctx context.Context, op, method, url string, data map[string]any) (*request.Envelope, error) {
	env, err := c.sender.Send(ctx, request.Options{
		URL:     url,
		Method:  method,
		Data:    data,
		Cookies: c.cookies,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env, nil
}

func decode[T any](op string, env *request.Envelope) (T, error) {
	out, err := request.DecodeData[T](env)
	if err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
