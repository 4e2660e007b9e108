package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"bilancio/internal/api"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/request"
	"bilancio/internal/session"
)

const (
	placeholderTitle      = "Nome del conto"
	msgSessionExpired     = "Sessione scaduta, effettua di nuovo l'accesso"
	msgBackendUnavailable = "Servizio non disponibile, riprova più tardi"
	msgRenderFailed       = "Errore di visualizzazione"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

type accountView struct {
	ID       string
	Name     string
	Sum      string
	Negative bool
}

type transactionView struct {
	ID   string
	Name string
	Date string
	Sum  string
	Type core.TransactionType
}

// Class is the CSS modifier of the transaction row.
func (t transactionView) Class() string {
	if t.Type == core.Expense {
		return "transaction_expense"
	}
	return "transaction_income"
}

type pageData struct {
	User          *core.User
	Accounts      []accountView
	AccountsError string
}

type accountPageData struct {
	AccountID    string
	Title        string
	Transactions []transactionView
}

type transactionModalData struct {
	Type     core.TransactionType
	Title    string
	Accounts []accountView
}

func toAccountViews(accounts []core.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:       a.ID.String(),
			Name:     a.Name,
			Sum:      a.Sum.Format(),
			Negative: a.Sum.Cents < 0,
		})
	}
	return views
}

func toTransactionViews(txs []core.Transaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{
			ID:   tx.ID.String(),
			Name: tx.Name,
			Date: core.FormatTimestamp(tx.CreatedAt),
			Sum:  tx.Sum.Format(),
			Type: tx.Type,
		})
	}
	return views
}

// clearedAccountPage is the page shown once an account is gone.
func clearedAccountPage() accountPageData {
	return accountPageData{Title: placeholderTitle}
}

func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// writeView renders a template into b and writes it.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	html, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template rendering failed",
			log.FieldError, err,
			"template", name,
			log.FieldPath, r.URL.Path)
		InternalServerError(msgRenderFailed).Write(w)
		return
	}
	b.BodyHTML(html).Write(w)
}

// failure classifies err into a status and a user-facing message and logs
// it. Application failures show the backend's message; transport, HTTP and
// decode failures show a generic one. A backend 401 ends the local session.
func (s *Server) failure(r *http.Request, sess *session.Session, op string, err error) (int, string) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	switch {
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, core.ValidationMessage(err)
	case errors.Is(err, api.ErrMissingID):
		return http.StatusBadRequest, "Identificativo mancante"
	}

	reqErr, ok := request.AsError(err)
	kind := "unknown"
	if ok {
		kind = reqErr.Kind.String()
	}

	if ok && reqErr.Kind == request.KindHTTP && reqErr.StatusCode == http.StatusUnauthorized {
		if sess != nil {
			s.sessions.Delete(sess.ID)
		}
		logger.WarnContext(ctx, "Backend session rejected",
			log.FieldOperation, op,
			log.FieldError, err)
		return http.StatusUnauthorized, msgSessionExpired
	}

	if ok && reqErr.Kind == request.KindApplication {
		logger.WarnContext(ctx, "Backend rejected operation",
			log.FieldOperation, op,
			log.FieldErrorKind, kind,
			log.FieldError, err)
		return http.StatusUnprocessableEntity, request.UserMessage(err, msgBackendUnavailable)
	}

	logger.ErrorContext(ctx, "Backend call failed",
		log.FieldOperation, op,
		log.FieldErrorKind, kind,
		log.FieldError, err)
	return http.StatusBadGateway, msgBackendUnavailable
}

// inlineError renders err into the target of the triggering element.
func (s *Server) inlineError(w http.ResponseWriter, r *http.Request, sess *session.Session, op string, err error) {
	status, msg := s.failure(r, sess, op, err)
	b := ErrorResponse(status, msg)
	if status == http.StatusUnauthorized {
		session.ClearCookie(w)
		b.TriggerAppReset()
	}
	b.Write(w)
}

// notifyError leaves the page untouched and shows err as a notification.
func (s *Server) notifyError(w http.ResponseWriter, r *http.Request, sess *session.Session, op string, err error) {
	status, msg := s.failure(r, sess, op, err)
	b := NewHTMXResponse().
		Status(status).
		Header("HX-Reswap", "none").
		TriggerErrorNotification(msg)
	if status == http.StatusUnauthorized {
		session.ClearCookie(w)
		b.TriggerAppReset()
	}
	b.Write(w)
}

// backendReachable reports whether err still proves the backend answered.
func backendReachable(err error) bool {
	if err == nil {
		return true
	}
	reqErr, ok := request.AsError(err)
	if !ok {
		return false
	}
	switch reqErr.Kind {
	case request.KindApplication:
		return true
	case request.KindHTTP:
		return reqErr.StatusCode < http.StatusInternalServerError
	default:
		return false
	}
}
