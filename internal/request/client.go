// Package request performs calls against the accounting backend and
// normalizes their outcome.
//
// Every backend endpoint answers with a JSON envelope
// {"success": bool, "data"|"error": ...}. Send issues exactly one HTTP call:
// GET requests carry their data as a percent-encoded query string, every
// other method sends it as a multipart form. The outcome is a two-branch
// result: the envelope on success, a *Error of a specific Kind otherwise.
// No failure path panics or is reported out of band.
package request

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	applog "bilancio/internal/log"
)

const defaultTimeout = 15 * time.Second

// Options describes a single backend call.
type Options struct {
	URL    string
	Method string
	// Data holds scalar field values. GET sends them as query parameters,
	// other methods as multipart form fields. Nil means no payload.
	Data    map[string]any
	Headers http.Header
	Cookies []*http.Cookie
}

// Callback receives the outcome of Go. Exactly one of env and err is non-nil.
type Callback func(env *Envelope, err error)

// Client issues backend requests. It is safe for concurrent use: it holds
// only immutable configuration and a shared HTTP client.
type Client struct {
	rc      *resty.Client
	logger  *applog.Logger
	metrics *Metrics
}

// Option configures a Client during construction in New.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *applog.Logger
	metrics    *Metrics
}

// WithHTTPClient replaces the pooled default http.Client. The client is
// used as is unless WithTimeout is also given, in which case a copy carries
// the timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout bounds the total time of a single request, including reading
// the body. Per-call context deadlines still apply.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be > 0")
		}
		c.timeout = d
		return nil
	}
}

func WithLogger(logger *applog.Logger) Option {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *clientConfig) error {
		c.metrics = m
		return nil
	}
}

// New creates a Client resolving relative URLs against baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	switch {
	case cfg.httpClient == nil:
		cfg.httpClient = newPooledHTTPClient()
		cfg.httpClient.Timeout = defaultTimeout
		if cfg.timeout > 0 {
			cfg.httpClient.Timeout = cfg.timeout
		}
	case cfg.timeout > 0:
		hc := *cfg.httpClient
		hc.Timeout = cfg.timeout
		cfg.httpClient = &hc
	}
	if cfg.logger == nil {
		cfg.logger = applog.Default(applog.ComponentRequest)
	}

	rc := resty.NewWithClient(cfg.httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{cfg.logger})

	return &Client{
		rc:      rc,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}, nil
}

// Send performs exactly one request and returns either the envelope of a
// successful response or a *Error describing the failure.
func (c *Client) Send(ctx context.Context, opts Options) (*Envelope, error) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, opts.Method)
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrEmptyURL
	}

	start := time.Now()
	env, err := c.send(ctx, method, opts)
	elapsed := time.Since(start)
	c.metrics.observe(method, outcomeOf(err), elapsed)
	return env, err
}

// Go runs Send on its own goroutine and hands the outcome to cb exactly once.
func (c *Client) Go(ctx context.Context, opts Options, cb Callback) {
	go func() {
		env, err := c.Send(ctx, opts)
		if cb != nil {
			cb(env, err)
		}
	}()
}

func (c *Client) send(ctx context.Context, method string, opts Options) (*Envelope, error) {
	req := c.rc.R().SetContext(ctx)
	if len(opts.Headers) > 0 {
		req.SetHeaderMultiValues(opts.Headers)
	}
	if len(opts.Cookies) > 0 {
		req.SetCookies(opts.Cookies)
	}

	target := opts.URL
	if method == http.MethodGet {
		target = BuildURL(opts.URL, opts.Data)
	} else if len(opts.Data) > 0 {
		// resty only builds multipart bodies for POST, PUT and PATCH.
		body, contentType, err := multipartBody(opts.Data)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Method: method, URL: target, Cause: err}
		}
		req.SetHeader("Content-Type", contentType).SetBody(body)
	}

	fail := func(kind Kind, status int, msg string, cause error) *Error {
		return &Error{Kind: kind, Method: method, URL: target, StatusCode: status, Message: msg, Cause: cause}
	}

	start := time.Now()
	resp, err := req.Execute(method, target)
	if err != nil {
		reqErr := fail(KindTransport, 0, "", err)
		c.logger.ErrorContext(ctx, "Backend request failed",
			applog.NewFields().
				WithOutboundRequest(method, target, 0, time.Since(start).Milliseconds()).
				WithError(err).
				ToSlice()...)
		return nil, reqErr
	}

	status := resp.StatusCode()
	c.logger.DebugContext(ctx, "Backend request completed",
		applog.NewFields().
			WithOutboundRequest(method, target, status, time.Since(start).Milliseconds()).
			ToSlice()...)

	if status < 200 || status > 299 {
		msg := serverMessage(resp.Body())
		if msg == "" {
			msg = genericFailureMessage
		}
		c.logger.WarnContext(ctx, "Backend answered with error status",
			applog.FieldMethod, method,
			applog.FieldURL, target,
			applog.FieldStatusCode, status,
			applog.FieldError, msg)
		return nil, fail(KindHTTP, status, msg, nil)
	}

	env, err := parseEnvelope(resp.Body())
	if err != nil {
		c.logger.ErrorContext(ctx, "Backend response is not a valid envelope",
			applog.FieldMethod, method,
			applog.FieldURL, target,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
		return nil, fail(KindDecode, status, "", err)
	}

	if !env.Success {
		reqErr := fail(KindApplication, status, env.ErrorMessage(), nil)
		reqErr.Envelope = env
		c.logger.WarnContext(ctx, "Backend reported failure",
			applog.FieldMethod, method,
			applog.FieldURL, target,
			applog.FieldError, reqErr.Message)
		return nil, reqErr
	}

	env.Cookies = resp.Cookies()
	return env, nil
}

// newPooledHTTPClient creates an HTTP client with connection pooling and
// bounded dial/handshake timeouts.
func newPooledHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}

// restyLogger routes resty's internal messages through the app logger.
type restyLogger struct {
	logger *applog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
