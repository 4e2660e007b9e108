package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/request"
)

func TestRequestOptions(t *testing.T) {
	opts, err := requestOptions([]string{"get", "/transaction", "account_id=3", "note=a=b"}, []string{"sid=xyz"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, opts.Method)
	assert.Equal(t, "/transaction", opts.URL)
	assert.Equal(t, map[string]any{"account_id": "3", "note": "a=b"}, opts.Data)
	require.Len(t, opts.Cookies, 1)
	assert.Equal(t, "xyz", opts.Cookies[0].Value)

	opts, err = requestOptions([]string{"POST", "/user/logout"}, nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Data)

	_, err = requestOptions([]string{"PUT", "/account", "name"}, nil)
	assert.Error(t, err)
	_, err = requestOptions([]string{"GET", "/account"}, []string{"=x"})
	assert.Error(t, err)
}

func TestRunRequestPrintsEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("account_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1}]}`))
	}))
	defer ts.Close()

	rc, err := request.New(ts.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runRequest(context.Background(), rc, request.Options{
		Method: http.MethodGet,
		URL:    "/transaction",
		Data:   map[string]any{"account_id": "3"},
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"success": true`)
	assert.Contains(t, out.String(), `"id": 1`)
}

func TestRunRequestReturnsApplicationError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Conto non trovato"}`))
	}))
	defer ts.Close()

	rc, err := request.New(ts.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runRequest(context.Background(), rc, request.Options{Method: http.MethodGet, URL: "/account/9"}, &out)
	assert.ErrorIs(t, err, request.ErrApplication)
	assert.Empty(t, out.String())
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	err := printEvent(&out, &amqp.TransactionEvent{
		Action:        amqp.ActionCreated,
		TransactionID: "9",
		AccountID:     "3",
		UserID:        "1",
		Name:          "Affitto",
		Type:          "expense",
		AmountCents:   70050,
		Timestamp:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 10:00:00 created tx=9 account=3 user=1 expense 700,50 Affitto\n", out.String())
}
