package devapi_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/api"
	"bilancio/internal/core"
	"bilancio/internal/devapi"
	"bilancio/internal/log"
	"bilancio/internal/request"
	"bilancio/internal/storage"
)

// TestAPIClientAgainstDevAPI drives the typed client through the reference
// backend over real HTTP.
func TestAPIClientAgainstDevAPI(t *testing.T) {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	logger := log.New(cfg)

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "e2e.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	srv := devapi.NewServer(devapi.Options{Repo: repo, Logger: logger, SessionTTL: time.Hour, PasswordCost: bcrypt.MinCost})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	rc, err := request.New(ts.URL, request.WithLogger(logger))
	require.NoError(t, err)
	anon := api.New(rc)
	ctx := context.Background()

	_, err = anon.ListAccounts(ctx)
	reqErr, ok := request.AsError(err)
	require.True(t, ok)
	assert.Equal(t, request.KindHTTP, reqErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.Nil(t, reqErr.Envelope)

	user, cookies, err := anon.Register(ctx, core.Registration{Name: "Anna", Email: "anna@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.Name)
	require.NotEmpty(t, cookies)

	c := anon.WithCookies(cookies)
	current, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)

	account, err := c.CreateAccount(ctx, "Contanti")
	require.NoError(t, err)

	_, err = c.CreateTransaction(ctx, core.NewTransaction{AccountID: account.ID, Type: core.Income, Name: "Stipendio", Sum: core.Money{Cents: 150000}})
	require.NoError(t, err)
	spent, err := c.CreateTransaction(ctx, core.NewTransaction{AccountID: account.ID, Type: core.Expense, Name: "Affitto", Sum: core.Money{Cents: 70050}})
	require.NoError(t, err)
	assert.False(t, spent.CreatedAt.IsZero())

	got, err := c.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 79950, got.Sum.Cents)

	txs, err := c.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, core.Expense, txs[0].Type)

	require.NoError(t, c.RemoveTransaction(ctx, spent.ID))
	err = c.RemoveTransaction(ctx, spent.ID)
	assert.ErrorIs(t, err, request.ErrApplication)
	assert.Equal(t, "Transazione non trovata", request.UserMessage(err, ""))

	require.NoError(t, c.RemoveAccount(ctx, account.ID))
	accounts, err := c.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, c.Logout(ctx))
	_, err = c.CurrentUser(ctx)
	assert.ErrorIs(t, err, request.ErrHTTPStatus)

	_, _, err = anon.Login(ctx, "anna@example.com", "wrong")
	assert.ErrorIs(t, err, request.ErrApplication)
	_, cookies, err = anon.Login(ctx, "anna@example.com", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, cookies)
}
