package api

import (
	"context"
	"net/http"

	"bilancio/internal/core"
)

// ListTransactions returns the transactions of one account.
func (c *Client) ListTransactions(ctx context.Context, accountID core.ID) ([]core.Transaction, error) {
	if accountID.IsEmpty() {
		return nil, ErrMissingID
	}
	env, err := c.send(ctx, "list transactions", http.MethodGet, PathTransaction,
		map[string]any{"account_id": accountID.String()})
	if err != nil {
		return nil, err
	}
	return decode[[]core.Transaction]("list transactions", env)
}

// CreateTransaction records an income or expense. The transaction is
// validated before anything is sent.
func (c *Client) CreateTransaction(ctx context.Context, tx core.NewTransaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	env, err := c.send(ctx, "create transaction", http.MethodPut, PathTransaction, map[string]any{
		"type":       string(tx.Type),
		"name":       tx.Name,
		"sum":        tx.Sum.Decimal(),
		"account_id": tx.AccountID.String(),
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return decode[core.Transaction]("create transaction", env)
}

// RemoveTransaction deletes a transaction by id.
func (c *Client) RemoveTransaction(ctx context.Context, id core.ID) error {
	if id.IsEmpty() {
		return ErrMissingID
	}
	_, err := c.send(ctx, "remove transaction", http.MethodDelete, PathTransaction, map[string]any{"id": id.String()})
	return err
}
