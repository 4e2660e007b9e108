package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/session"
)

var transactionTitles = map[core.TransactionType]string{
	core.Income:  "Nuova entrata",
	core.Expense: "Nuova uscita",
}

// handleTransactionModal renders the income or expense form with the
// account select filled from the backend.
func (s *Server) handleTransactionModal(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	txType := core.TransactionType(r.URL.Query().Get("type"))
	if !txType.Valid() {
		BadRequestError(core.ValidationMessage(core.ErrInvalidType)).Write(w)
		return
	}
	accounts, err := backend.ListAccounts(r.Context())
	if err != nil {
		s.inlineError(w, r, &sess, "list accounts", err)
		return
	}
	s.writeView(w, r, NewHTMXResponse(), "modal_transaction", transactionModalData{
		Type:     txType,
		Title:    transactionTitles[txType],
		Accounts: toAccountViews(accounts),
	})
}

// handleCreateTransaction records the submitted transaction. On success the
// form is reset, the modal closed and the page refreshed through events.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	newTx, err := parseNewTransaction(r.PostForm)
	if err != nil {
		UnprocessableEntityError(core.ValidationMessage(err)).Write(w)
		return
	}

	tx, err := backend.CreateTransaction(r.Context(), newTx)
	if err != nil {
		s.inlineError(w, r, &sess, "create transaction", err)
		return
	}

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(newTx.AccountID.String(), string(newTx.Type), newTx.Sum.Cents)
	fields[log.FieldTxID] = tx.ID.String()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created", fields.ToSlice()...)
	NewHTMXResponse().
		TriggerTransactionCreated(tx.AccountID.String()).
		TriggerModalClose().
		TriggerFormReset().
		Write(w)
}

// handleRemoveTransaction deletes a transaction. The empty body removes the
// row on the client.
func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	id := core.ID(r.PathValue("id"))
	if err := backend.RemoveTransaction(r.Context(), id); err != nil {
		s.notifyError(w, r, &sess, "remove transaction", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction removed",
		log.FieldTxID, id.String(),
		log.FieldUserID, sess.User.ID.String())
	NewHTMXResponse().TriggerTransactionRemoved(id.String()).Write(w)
}
