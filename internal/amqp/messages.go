package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// Event actions.
const (
	ActionCreated = "created"
	ActionRemoved = "removed"
)

// TransactionEvent announces a transaction recorded or removed by the
// backend. It carries the whole transaction so consumers need no lookup.
type TransactionEvent struct {
	Action        string    `json:"action"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent builds an event for tx stamped with the current time.
func NewTransactionEvent(action string, userID core.ID, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Action:        action,
		TransactionID: tx.ID.String(),
		AccountID:     tx.AccountID.String(),
		UserID:        userID.String(),
		Name:          tx.Name,
		Type:          string(tx.Type),
		AmountCents:   tx.Sum.Cents,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON parses an event and rejects unknown actions.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Action != ActionCreated && ev.Action != ActionRemoved {
		return nil, fmt.Errorf("unknown event action %q", ev.Action)
	}
	return &ev, nil
}
