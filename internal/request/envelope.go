package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Envelope is the JSON wrapper every backend endpoint answers with.
// Data is opaque and decoded by the caller; the user endpoints put their
// payload under "user" instead. Cookies holds the cookies set by a
// successful response; they are not part of the JSON body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	Cookies []*http.Cookie `json:"-"`
}

var errNoPayload = errors.New("envelope carries no payload")

// ErrorMessage returns the error field as text. A JSON string is returned
// unquoted; any other JSON value is returned compacted.
func (e *Envelope) ErrorMessage() string {
	if e == nil || len(e.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Error); err != nil {
		return string(e.Error)
	}
	return buf.String()
}

// Payload returns data, or user when data is absent.
func (e *Envelope) Payload() json.RawMessage {
	if e == nil {
		return nil
	}
	if len(e.Data) > 0 && !bytes.Equal(e.Data, []byte("null")) {
		return e.Data
	}
	return e.User
}

// DecodeData unmarshals the envelope payload into T.
func DecodeData[T any](env *Envelope) (T, error) {
	var out T
	payload := env.Payload()
	if len(payload) == 0 {
		return out, errNoPayload
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func parseEnvelope(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("body is not a JSON object")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// serverMessage extracts a "message" or "error" string from a non-2xx body.
// The body is never treated as a success envelope.
func serverMessage(body []byte) string {
	var fields struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{fields.Message, fields.Error} {
		var s string
		if len(raw) > 0 && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}
