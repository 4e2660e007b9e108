// Package devapi is a reference accounting backend speaking the JSON
// envelope contract, for local development and end-to-end tests.
package devapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/storage"
)

const (
	msgNotAuthenticated   = "Non autenticato"
	msgInternal           = "Errore interno del server"
	msgNotFound           = "Risorsa non trovata"
	msgAccountNotFound    = "Conto non trovato"
	msgTransactionMissing = "Transazione non trovata"
	msgEmailTaken         = "Email già registrata"
	msgBadCredentials     = "Credenziali non valide"
	msgPasswordTooLong    = "Password troppo lunga"
)

// Repository is the persistence the backend needs.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, name, email, passwordHash string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.UserRecord, error)
	CreateSession(ctx context.Context, token string, userID core.ID, expiresAt time.Time) error
	SessionUser(ctx context.Context, token string) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	ListAccounts(ctx context.Context, userID core.ID) ([]core.Account, error)
	GetAccount(ctx context.Context, userID, id core.ID) (core.Account, error)
	CreateAccount(ctx context.Context, userID core.ID, name string) (core.Account, error)
	DeleteAccount(ctx context.Context, userID, id core.ID) error

	ListTransactions(ctx context.Context, userID, accountID core.ID) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, userID core.ID, nt core.NewTransaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id core.ID) (core.Transaction, error)
}

// Publisher receives transaction events. It is optional.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

type Options struct {
	Addr       string
	Repo       Repository
	Publisher  Publisher
	Logger     *log.Logger
	SessionTTL time.Duration
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

type Server struct {
	http.Server
	repo       Repository
	publisher  Publisher
	logger     *log.Logger
	sessionTTL time.Duration
	pwCost     int
	now        func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewServer wires the routes of the backend.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentDevAPI)
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	s := &Server{
		repo:        opts.Repo,
		publisher:   opts.Publisher,
		logger:      logger,
		sessionTTL:  ttl,
		pwCost:      cost,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHTTPError(w, http.StatusNotFound, msgNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHTTPError(w, http.StatusMethodNotAllowed, msgNotFound)
	})

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// Public user endpoints
	router.HandleFunc("/user/login", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/user/register", s.handleRegister).Methods(http.MethodPost)

	// Session-bound endpoints
	protected := router.PathPrefix("").Subrouter()
	protected.Use(s.requireUser)
	protected.HandleFunc("/user/logout", s.handleLogout).Methods(http.MethodPost)
	protected.HandleFunc("/user/current", s.handleCurrentUser).Methods(http.MethodGet)

	protected.HandleFunc("/account", s.handleListAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/account/{id}", s.handleGetAccount).Methods(http.MethodGet)
	protected.HandleFunc("/account", s.handleCreateAccount).Methods(http.MethodPut)
	protected.HandleFunc("/account", s.handleRemoveAccount).Methods(http.MethodDelete)

	protected.HandleFunc("/transaction", s.handleListTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/transaction", s.handleCreateTransaction).Methods(http.MethodPut)
	protected.HandleFunc("/transaction", s.handleRemoveTransaction).Methods(http.MethodDelete)

	ips := security.NewClientIPExtractor()
	var handler http.Handler = router
	handler = trace.NewMiddleware(logger, ips.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// StartSessionCleanup removes expired sessions every interval until
// Shutdown.
func (s *Server) StartSessionCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := s.repo.DeleteExpiredSessions(context.Background())
				if err != nil {
					s.logger.Warn("Session cleanup failed", log.FieldError, err)
				} else if n > 0 {
					s.logger.Debug("Expired sessions removed", "count", n)
				}
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Database ping failed", log.FieldError, err)
		writeHTTPError(w, http.StatusServiceUnavailable, msgInternal)
		return
	}
	writeData(w, map[string]string{"status": "ok"})
}
