// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTMX form
// submissions.

package http

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"bilancio/internal/core"
)

const maxFormBytes = 1 << 20

// ParseFormOrFail parses an urlencoded or multipart request body.
// Returns nil on success.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return BadRequestError("Formato richiesta non valido")
	}
	return nil
}

// formValue returns a sanitized value of the request body.
func formValue(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// parseNewTransaction builds a transaction from the submitted form. The
// type comes from the form so the same handler serves both modals.
func parseNewTransaction(form url.Values) (core.NewTransaction, error) {
	tx := core.NewTransaction{
		AccountID: core.ID(formValue(form, "account_id")),
		Type:      core.TransactionType(formValue(form, "type")),
		Name:      formValue(form, "name"),
	}
	cents, err := core.ParseDecimalToCents(formValue(form, "sum"))
	if err != nil {
		return tx, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	tx.Sum = core.Money{Cents: cents}
	return tx, tx.Validate()
}

func parseRegistration(form url.Values) core.Registration {
	return core.Registration{
		Name:     formValue(form, "name"),
		Email:    formValue(form, "email"),
		Password: form.Get("password"),
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
