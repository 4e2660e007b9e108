package devapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

const maxFormBytes = 1 << 20

// envelope is the body of every answer. Failures before the handler ran
// (auth, routing, internal errors) use a non-2xx status with error and
// message; rejected operations answer 200 with success false.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	User    any    `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeUser(w http.ResponseWriter, user any) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, User: user})
}

func writeRejected(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusOK, envelope{Success: false, Error: message})
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{
		Success: false,
		Error:   http.StatusText(status),
		Message: message,
	})
}

// formValues collects the submitted fields. Multipart and urlencoded bodies
// are read for every method, DELETE included; the query string is merged
// underneath.
func formValues(r *http.Request) (url.Values, error) {
	values := r.URL.Query()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		for k, v := range r.MultipartForm.Value {
			values[k] = v
		}
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
		if err != nil {
			return nil, fmt.Errorf("read form body: %w", err)
		}
		parsed, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		for k, v := range parsed {
			values[k] = v
		}
	}
	return values, nil
}
