package devapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// fail answers a failed operation. Validation and lookup failures are
// rejections the user can act on; anything else is a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, notFound string, err error) {
	switch {
	case core.IsValidationError(err):
		writeRejected(w, core.ValidationMessage(err))
	case errors.Is(err, storage.ErrNotFound):
		writeRejected(w, notFound)
	case errors.Is(err, storage.ErrEmailTaken):
		writeRejected(w, msgEmailTaken)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Operation failed",
			log.FieldOperation, op,
			log.FieldError, err)
		writeHTTPError(w, http.StatusInternalServerError, msgInternal)
	}
}

// form parses the request fields, answering 400 on failure.
func form(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	values, err := formValues(r)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "Richiesta non valida")
		return nil, false
	}
	return values, true
}

func field(values url.Values, name string) string {
	return strings.TrimSpace(values.Get(name))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	email, password := field(values, "email"), values.Get("password")
	if email == "" || password == "" {
		writeRejected(w, msgBadCredentials)
		return
	}

	rec, err := s.repo.GetUserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !checkPassword(password, rec.PasswordHash)) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Login rejected",
			log.FieldOperation, log.OpLogin)
		writeRejected(w, msgBadCredentials)
		return
	}
	if err != nil {
		s.fail(w, r, log.OpLogin, msgBadCredentials, err)
		return
	}

	if err := s.startSession(r.Context(), w, rec.User); err != nil {
		s.fail(w, r, log.OpLogin, msgBadCredentials, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, rec.ID.String())
	writeUser(w, rec.User)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	reg := core.Registration{
		Name:     field(values, "name"),
		Email:    field(values, "email"),
		Password: values.Get("password"),
	}
	if err := reg.Validate(); err != nil {
		writeRejected(w, core.ValidationMessage(err))
		return
	}

	hash, err := s.hashPassword(reg.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		writeRejected(w, msgPasswordTooLong)
		return
	}
	if err != nil {
		s.fail(w, r, log.OpRegister, "", err)
		return
	}
	user, err := s.repo.CreateUser(r.Context(), reg.Name, reg.Email, hash)
	if err != nil {
		s.fail(w, r, log.OpRegister, "", err)
		return
	}
	if err := s.startSession(r.Context(), w, user); err != nil {
		s.fail(w, r, log.OpRegister, "", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldOperation, log.OpRegister,
		log.FieldUserID, user.ID.String())
	writeUser(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := s.repo.DeleteSession(r.Context(), cookie.Value); err != nil {
			s.fail(w, r, log.OpLogout, "", err)
			return
		}
	}
	clearSessionCookie(w)
	writeData(w, nil)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	writeUser(w, currentUser(r.Context()))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.ListAccounts(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.fail(w, r, log.OpList, msgAccountNotFound, err)
		return
	}
	writeData(w, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := core.ID(mux.Vars(r)["id"])
	account, err := s.repo.GetAccount(r.Context(), currentUser(r.Context()).ID, id)
	if err != nil {
		s.fail(w, r, log.OpRead, msgAccountNotFound, err)
		return
	}
	writeData(w, account)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	account, err := s.repo.CreateAccount(r.Context(), currentUser(r.Context()).ID, field(values, "name"))
	if err != nil {
		s.fail(w, r, log.OpCreate, msgAccountNotFound, err)
		return
	}
	writeData(w, account)
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteAccount(r.Context(), currentUser(r.Context()).ID, core.ID(field(values, "id"))); err != nil {
		s.fail(w, r, log.OpDelete, msgAccountNotFound, err)
		return
	}
	writeData(w, nil)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := core.ID(strings.TrimSpace(r.URL.Query().Get("account_id")))
	txs, err := s.repo.ListTransactions(r.Context(), currentUser(r.Context()).ID, accountID)
	if err != nil {
		s.fail(w, r, log.OpList, msgAccountNotFound, err)
		return
	}
	writeData(w, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	nt := core.NewTransaction{
		AccountID: core.ID(field(values, "account_id")),
		Type:      core.TransactionType(field(values, "type")),
		Name:      field(values, "name"),
	}
	cents, err := core.ParseDecimalToCents(field(values, "sum"))
	if err != nil {
		writeRejected(w, core.ValidationMessage(core.ErrInvalidAmount))
		return
	}
	nt.Sum = core.Money{Cents: cents}

	user := currentUser(r.Context())
	tx, err := s.repo.CreateTransaction(r.Context(), user.ID, nt)
	if err != nil {
		s.fail(w, r, log.OpCreate, msgAccountNotFound, err)
		return
	}
	s.publish(r, amqp.ActionCreated, user.ID, tx)
	writeData(w, tx)
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	values, ok := form(w, r)
	if !ok {
		return
	}
	user := currentUser(r.Context())
	tx, err := s.repo.DeleteTransaction(r.Context(), user.ID, core.ID(field(values, "id")))
	if err != nil {
		s.fail(w, r, log.OpDelete, msgTransactionMissing, err)
		return
	}
	s.publish(r, amqp.ActionRemoved, user.ID, tx)
	writeData(w, nil)
}

// publish emits a transaction event when a publisher is configured. A
// failed publish is logged; the operation already succeeded.
func (s *Server) publish(r *http.Request, action string, userID core.ID, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(r.Context(), amqp.NewTransactionEvent(action, userID, tx)); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to publish transaction event",
			log.FieldOperation, log.OpPublish,
			log.FieldTxID, tx.ID.String(),
			log.FieldError, err)
	}
}
