package http

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/session"
	appweb "bilancio/web"
)

// Backend is the set of backend operations the UI uses. *api.Client
// satisfies it.
type Backend interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id core.ID) (core.Account, error)
	CreateAccount(ctx context.Context, name string) (core.Account, error)
	RemoveAccount(ctx context.Context, id core.ID) error
	ListTransactions(ctx context.Context, accountID core.ID) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.NewTransaction) (core.Transaction, error)
	RemoveTransaction(ctx context.Context, id core.ID) error
	Login(ctx context.Context, email, password string) (core.User, []*http.Cookie, error)
	Register(ctx context.Context, reg core.Registration) (core.User, []*http.Cookie, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (core.User, error)
}

// BackendFactory returns a Backend authenticated with the given backend
// cookies. Nil cookies yield an anonymous Backend.
type BackendFactory func(cookies []*http.Cookie) Backend

// Options configures NewServer.
type Options struct {
	Addr         string
	Backend      BackendFactory
	Sessions     *session.Store
	Logger       *log.Logger
	RateLimitRPM int
	CookieSecure bool
	// TrustedProxies are CIDRs whose forwarding headers are honored in
	// addition to loopback and private networks.
	TrustedProxies []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the bilancio UI server.
type Server struct {
	http.Server
	templates    *template.Template
	backend      BackendFactory
	sessions     *session.Store
	rateLimiter  *ratelimit.Limiter
	logger       *log.Logger
	cookieSecure bool
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		backend:      opts.Backend,
		sessions:     opts.Sessions,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		logger:       logger,
		cookieSecure: opts.CookieSecure,
		startedAt:    time.Now(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Sidebar
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/modal/login", s.handleLoginModal)
	mux.HandleFunc("GET /ui/modal/register", s.handleRegisterModal)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.withSession(s.handleLogout))

	// Accounts
	mux.HandleFunc("GET /ui/accounts", s.withSession(s.handleAccountsWidget))
	mux.HandleFunc("GET /ui/modal/account", s.withSession(s.handleAccountModal))
	mux.HandleFunc("POST /accounts", s.withSession(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts/{$}", handleNoAccount)
	mux.HandleFunc("GET /accounts/{id}", s.withSession(s.handleAccountPage))
	mux.HandleFunc("POST /accounts/{id}/delete", s.withSession(s.handleRemoveAccount))

	// Transactions
	mux.HandleFunc("GET /ui/modal/transaction", s.withSession(s.handleTransactionModal))
	mux.HandleFunc("POST /transactions", s.withSession(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/{id}/delete", s.withSession(s.handleRemoveTransaction))

	ips := security.NewClientIPExtractor()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(ips.ExtractClientIP, s.onRateLimit, http.MethodPost)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, ips.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// sessionHandler is a handler bound to a live session and its backend.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend)

// withSession resolves the browser session. Requests without one get a 401
// that resets the client.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.FromRequest(r)
		if !ok {
			session.ClearCookie(w)
			UnauthorizedError().Write(w)
			return
		}
		next(w, r, sess, s.backend(sess.Backend))
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Troppe richieste, riprova tra poco").
		Header("HX-Reswap", "none").
		TriggerErrorNotification("Troppe richieste, riprova tra poco").
		Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports whether templates are loaded and the backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	_, err := s.backend(nil).CurrentUser(ctx)
	if backendReachable(err) {
		checks["backend"] = "ok"
	} else {
		checks["backend"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["sessions"] = map[string]any{"active": s.sessions.Len()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
