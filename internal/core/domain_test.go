package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{
		AccountID: "7",
		Type:      Expense,
		Name:      "Spesa",
		Sum:       Money{Cents: 1250},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []NewTransaction{
		{AccountID: "7", Type: "transfer", Name: "a", Sum: Money{Cents: 1}},
		{AccountID: "", Type: Income, Name: "a", Sum: Money{Cents: 1}},
		{AccountID: "7", Type: Income, Name: "  ", Sum: Money{Cents: 1}},
		{AccountID: "7", Type: Income, Name: "a", Sum: Money{Cents: 0}},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRegistrationValidate(t *testing.T) {
	if err := (Registration{Name: "Anna", Email: "anna@example.com", Password: "x"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	cases := []Registration{
		{Name: "", Email: "a@b.c", Password: "x"},
		{Name: "Anna", Email: "anna", Password: "x"},
		{Name: "Anna", Email: "anna@", Password: "x"},
		{Name: "Anna", Email: "a@b.c", Password: ""},
	}
	for i, r := range cases {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionUnmarshal(t *testing.T) {
	body := `{"id":12,"account_id":"3","name":"Stipendio","sum":1500.5,"type":"income","created_at":"2019-03-10 03:20:41"}`
	var tx Transaction
	if err := json.Unmarshal([]byte(body), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.ID != "12" || tx.AccountID != "3" {
		t.Fatalf("ids = %q/%q", tx.ID, tx.AccountID)
	}
	if tx.Sum.Cents != 150050 {
		t.Fatalf("sum = %d, want 150050", tx.Sum.Cents)
	}
	if tx.Type != Income {
		t.Fatalf("type = %q", tx.Type)
	}
	want := time.Date(2019, 3, 10, 3, 20, 41, 0, time.Local)
	if !tx.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %v, want %v", tx.CreatedAt, want)
	}
}

func TestAccountNegativeBalance(t *testing.T) {
	var a Account
	if err := json.Unmarshal([]byte(`{"id":1,"name":"Carta","sum":"-20,10"}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Sum.Cents != -2010 {
		t.Fatalf("sum = %d, want -2010", a.Sum.Cents)
	}
	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":"1","name":"Carta","sum":-20.10}` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := Timestamp{Time: time.Date(2019, 3, 10, 3, 20, 41, 0, time.UTC)}
	if got := FormatTimestamp(ts); got != "10 marzo 2019 alle 03:20" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
	if got := FormatTimestamp(Timestamp{}); got != "" {
		t.Fatalf("zero timestamp = %q", got)
	}
}
