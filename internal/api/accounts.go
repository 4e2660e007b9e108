package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"bilancio/internal/core"
)

var ErrMissingID = errors.New("missing id")

// ListAccounts returns the accounts of the current user.
func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	env, err := c.send(ctx, "list accounts", http.MethodGet, PathAccount, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]core.Account]("list accounts", env)
}

// GetAccount fetches a single account by id.
func (c *Client) GetAccount(ctx context.Context, id core.ID) (core.Account, error) {
	if id.IsEmpty() {
		return core.Account{}, ErrMissingID
	}
	path := PathAccount + "/" + url.PathEscape(strings.TrimSpace(id.String()))
	env, err := c.send(ctx, "get account", http.MethodGet, path, nil)
	if err != nil {
		return core.Account{}, err
	}
	return decode[core.Account]("get account", env)
}

// CreateAccount creates a new account with a zero balance.
func (c *Client) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}
	env, err := c.send(ctx, "create account", http.MethodPut, PathAccount, map[string]any{"name": name})
	if err != nil {
		return core.Account{}, err
	}
	return decode[core.Account]("create account", env)
}

// RemoveAccount deletes an account together with its transactions.
func (c *Client) RemoveAccount(ctx context.Context, id core.ID) error {
	if id.IsEmpty() {
		return ErrMissingID
	}
	_, err := c.send(ctx, "remove account", http.MethodDelete, PathAccount, map[string]any{"id": id.String()})
	return err
}
