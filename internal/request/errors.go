package request

import (
	"errors"
	"fmt"
)

// Kind classifies why a request failed.
type Kind int

const (
	// KindTransport covers failures before a response was received:
	// dial errors, TLS errors, context cancellation.
	KindTransport Kind = iota + 1
	// KindHTTP is a response with a status outside 200-299.
	KindHTTP
	// KindApplication is a well-formed envelope with success=false.
	KindApplication
	// KindDecode is a 2xx response whose body is not a valid envelope.
	KindDecode
)

// Sentinels for errors.Is against a *Error of the matching kind.
var (
	ErrTransport   = errors.New("transport failure")
	ErrHTTPStatus  = errors.New("http status failure")
	ErrApplication = errors.New("application failure")
	ErrDecode      = errors.New("invalid response body")

	ErrUnsupportedMethod = errors.New("unsupported method")
	ErrEmptyURL          = errors.New("empty url")
)

// genericFailureMessage is used for non-2xx responses that carry no message.
const genericFailureMessage = "request failed"

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindApplication:
		return "application"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindHTTP:
		return ErrHTTPStatus
	case KindApplication:
		return ErrApplication
	case KindDecode:
		return ErrDecode
	default:
		return nil
	}
}

// Error is the failure branch of Send. Envelope is set only for
// KindApplication; StatusCode is set for KindHTTP, KindApplication and
// KindDecode.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Message    string
	Envelope   *Envelope
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: %s failure (HTTP %d): %s", e.Method, e.URL, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s failure: %s", e.Method, e.URL, e.Kind, msg)
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var reqErr *Error
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

// UserMessage returns the message suitable for showing to an end user:
// the backend's own message for application failures and a fallback for
// everything else.
func UserMessage(err error, fallback string) string {
	if reqErr, ok := AsError(err); ok && reqErr.Kind == KindApplication && reqErr.Message != "" {
		return reqErr.Message
	}
	return fallback
}
