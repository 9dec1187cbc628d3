package amqp

import (
	"encoding/json"
	"time"

	"budgetblocks/internal/ledger"

	"github.com/google/uuid"
)

// LedgerEventMessage carries one committed ledger event to the worker.
type LedgerEventMessage struct {
	ID        string       `json:"id"`
	Event     ledger.Event `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewLedgerEventMessage wraps e with a fresh message id.
func NewLedgerEventMessage(e ledger.Event) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        uuid.NewString(),
		Event:     e,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
