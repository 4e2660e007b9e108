package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// TimestampLayout is the layout the backend uses for created_at fields.
const TimestampLayout = "2006-01-02 15:04:05"

type (
	TransactionType string

	// ID is an entity identifier. The backend may send it as a JSON number
	// or string; it is always handled as a string here.
	ID string

	Timestamp struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
		Sum  Money  `json:"sum"`
	}

	Transaction struct {
		ID        ID              `json:"id"`
		AccountID ID              `json:"account_id"`
		Name      string          `json:"name"`
		Sum       Money           `json:"sum"`
		Type      TransactionType `json:"type"`
		CreatedAt Timestamp       `json:"created_at"`
	}

	// NewTransaction is the payload submitted by the transaction form.
	NewTransaction struct {
		AccountID ID
		Type      TransactionType
		Name      string
		Sum       Money
	}

	User struct {
		ID    ID     `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	// Registration holds the fields of the register form.
	Registration struct {
		Name     string
		Email    string
		Password string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrMissingAccount   = errors.New("missing account")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrEmptyPassword    = errors.New("empty password")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (id ID) String() string { return string(id) }

// IsEmpty reports whether the identifier is blank.
func (id ID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// NewTimestamp wraps t, truncated to seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

// ParseTimestamp accepts the backend layout and RFC 3339.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return Timestamp{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	return Timestamp{}, ErrInvalidTimestamp
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(ts.Format(TimestampLayout))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidTimestamp
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Zero and negative
// values are allowed: account balances may be either.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		m.Cents = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	cents, err := parseCents(s, true)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

// Decimal renders the amount as a plain decimal with two fraction digits.
func (m Money) Decimal() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + frac
}

func (t NewTransaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.AccountID.IsEmpty() {
		return ErrMissingAccount
	}
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return t.Sum.Validate()
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	email := strings.TrimSpace(r.Email)
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	if r.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}
