package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/session"
)

// handleAccountsWidget renders the sidebar account list.
func (s *Server) handleAccountsWidget(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	accounts, err := backend.ListAccounts(r.Context())
	if err != nil {
		s.inlineError(w, r, &sess, "list accounts", err)
		return
	}
	s.writeView(w, r, NewHTMXResponse(), "accounts_widget", pageData{Accounts: toAccountViews(accounts)})
}

func (s *Server) handleAccountModal(w http.ResponseWriter, r *http.Request, _ session.Session, _ Backend) {
	s.writeView(w, r, NewHTMXResponse(), "modal_account", nil)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	account, err := backend.CreateAccount(r.Context(), formValue(r.PostForm, "name"))
	if err != nil {
		s.inlineError(w, r, &sess, "create account", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		log.FieldAccountID, account.ID.String(),
		log.FieldUserID, sess.User.ID.String())
	NewHTMXResponse().
		TriggerModalClose().
		TriggerFormReset().
		TriggerAccountsRefresh().
		TriggerSuccessNotification("Conto creato").
		Write(w)
}

// handleNoAccount answers a page request without an account id: there is
// nothing to render.
func handleNoAccount(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleAccountPage renders the account title and its transactions. Both
// are fetched concurrently.
func (s *Server) handleAccountPage(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	id := core.ID(r.PathValue("id"))

	var (
		account core.Account
		txs     []core.Transaction
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		account, err = backend.GetAccount(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = backend.ListTransactions(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		s.inlineError(w, r, &sess, "render account page", err)
		return
	}

	s.writeView(w, r, NewHTMXResponse(), "account_page", accountPageData{
		AccountID:    id.String(),
		Title:        account.Name,
		Transactions: toTransactionViews(txs),
	})
}

// handleRemoveAccount deletes the account and clears the page.
func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	id := core.ID(r.PathValue("id"))
	if err := backend.RemoveAccount(r.Context(), id); err != nil {
		s.notifyError(w, r, &sess, "remove account", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account removed",
		log.FieldAccountID, id.String(),
		log.FieldUserID, sess.User.ID.String())
	s.writeView(w, r, NewHTMXResponse().TriggerAccountsRefresh(), "account_page", clearedAccountPage())
}
